package filter

import (
	"strings"
	"unicode"

	"ScoutRadar/internal/config"
	"ScoutRadar/internal/domain"
)

// Filter is the cheap pre-classification gate: pure, synchronous, no I/O.
// Allow-list matches always win over deny-list matches; when neither list
// matches, the configured default polarity decides.
type Filter struct {
	allow         []string
	deny          []string
	blocked       []*unicode.RangeTable
	minStars      int
	defaultAccept bool
}

// New builds a filter from the versioned policy config. Unknown script names
// are ignored rather than rejected, so a stale config cannot break startup.
func New(cfg config.FilterConfig) *Filter {
	f := &Filter{
		allow:         lowerAll(cfg.Allow),
		deny:          lowerAll(cfg.Deny),
		minStars:      cfg.MinStars,
		defaultAccept: cfg.DefaultAccept,
	}
	for _, name := range cfg.BlockedScripts {
		if rt, ok := unicode.Scripts[name]; ok {
			f.blocked = append(f.blocked, rt)
		}
	}
	return f
}

// Accept decides whether the repo is worth a classification call.
func (f *Filter) Accept(repo domain.Repo) bool {
	text := strings.ToLower(repo.FullName + " " + repo.Description + " " + strings.Join(repo.Topics, " "))

	if f.ContainsBlockedScript(text) {
		return false
	}
	if repo.Stars < f.minStars {
		return false
	}

	for _, term := range f.allow {
		if strings.Contains(text, term) {
			return true
		}
	}
	for _, term := range f.deny {
		if strings.Contains(text, term) {
			return false
		}
	}
	return f.defaultAccept
}

// ContainsBlockedScript reports whether the text carries characters from a
// blocked Unicode script range. Exposed so the publisher can reuse it as the
// final content-safety gate on rendered payloads.
func (f *Filter) ContainsBlockedScript(text string) bool {
	if len(f.blocked) == 0 {
		return false
	}
	for _, r := range text {
		if unicode.IsOneOf(f.blocked, r) {
			return true
		}
	}
	return false
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
