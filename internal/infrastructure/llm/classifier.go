package llm

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ScoutRadar/internal/config"
	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/filter"
	"ScoutRadar/internal/ports"
)

// messagesAPI is the slice of the Anthropic SDK the classifier needs;
// narrowed so tests can substitute a double.
type messagesAPI interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Classifier asks the model for a per-item GOOD/SKIP verdict over a small
// batch of candidates, one API call per batch.
type Classifier struct {
	messages     messagesAPI
	model        string
	systemPrompt string
	freshness    *filter.Evaluator
	maxRetries   int
	sleep        func(time.Duration)
	logger       *slog.Logger
}

var _ ports.Classifier = (*Classifier)(nil)

var verdictLine = regexp.MustCompile(`^\s*(\d+)\s*[:.)]\s*(GOOD|SKIP)\b`)

// NewClassifier builds a classifier from configuration.
func NewClassifier(cfg config.ClassifierConfig, freshness *filter.Evaluator, logger *slog.Logger) *Classifier {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Classifier{
		messages:     &client.Messages,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		freshness:    freshness,
		maxRetries:   cfg.MaxRetries,
		sleep:        time.Sleep,
		logger:       logger,
	}
}

// Classify issues one model call for the whole batch and parses line-oriented
// verdicts keyed by 1-based batch position. A non-nil error means the service
// failed and the caller must apply its configured fallback policy.
func (c *Classifier) Classify(ctx context.Context, batch []domain.Repo, sourceContext string) (map[int]bool, error) {
	if len(batch) == 0 {
		return map[int]bool{}, nil
	}

	prompt := c.buildPrompt(batch, sourceContext)

	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.debug("retrying classification", "attempt", attempt, "error", lastErr)
			c.sleep(backoff)
			backoff *= 2
		}

		resp, err := c.messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: 512,
			System:    []anthropic.TextBlockParam{{Text: c.systemPrompt}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			lastErr = err
			continue
		}

		verdicts := parseVerdicts(responseText(resp))
		if len(verdicts) == 0 {
			lastErr = fmt.Errorf("no parsable verdict lines in response")
			continue
		}
		return verdicts, nil
	}

	return nil, fmt.Errorf("classify batch of %d: %w", len(batch), lastErr)
}

func (c *Classifier) buildPrompt(batch []domain.Repo, sourceContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", sourceContext)
	b.WriteString("Judge each repository below. Answer with one line per item, ")
	b.WriteString("exactly \"N: GOOD\" for a real circumvention tool or useful list, ")
	b.WriteString("\"N: SKIP\" for junk. No other text.\n\n")

	for i, repo := range batch {
		desc := repo.Description
		if desc == "" {
			desc = "(no description)"
		}
		recency := "unknown"
		if c.freshness != nil {
			recency = c.freshness.Label(repo.PushedAt)
		}
		fmt.Fprintf(&b, "%d. %s — %s (stars: %d, updated: %s)\n", i+1, repo.FullName, desc, repo.Stars, recency)
	}

	return b.String()
}

// parseVerdicts reads strict "N: GOOD|SKIP" lines, skipping anything
// malformed; the service's format drifts and partial output is still usable.
func parseVerdicts(text string) map[int]bool {
	verdicts := map[int]bool{}
	for _, line := range strings.Split(text, "\n") {
		m := verdictLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		pos, err := strconv.Atoi(m[1])
		if err != nil || pos < 1 {
			continue
		}
		verdicts[pos] = m[2] == "GOOD"
	}
	return verdicts
}

func responseText(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func (c *Classifier) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
