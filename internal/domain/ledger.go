package domain

// Ledger is the persisted cross-run history: identifiers already handled
// (insertion order preserved so truncation evicts oldest first) and per-source
// last-seen markers (commit SHA or release tag).
type Ledger struct {
	PostedIDs []string          `json:"posted_ids"`
	Markers   map[string]string `json:"markers"`

	seen map[string]struct{}
}

// NewLedger builds an empty ledger with initialized internals.
func NewLedger() *Ledger {
	return &Ledger{Markers: map[string]string{}, seen: map[string]struct{}{}}
}

// Reindex rebuilds the lookup set from PostedIDs; call after deserializing.
func (l *Ledger) Reindex() {
	if l.Markers == nil {
		l.Markers = map[string]string{}
	}
	l.seen = make(map[string]struct{}, len(l.PostedIDs))
	for _, id := range l.PostedIDs {
		l.seen[id] = struct{}{}
	}
}

// Contains reports whether the identifier was already handled.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// Record marks the identifier as handled; duplicates are ignored so the
// insertion order stays one entry per logical item.
func (l *Ledger) Record(id string) {
	if l.Contains(id) {
		return
	}
	if l.seen == nil {
		l.seen = map[string]struct{}{}
	}
	l.seen[id] = struct{}{}
	l.PostedIDs = append(l.PostedIDs, id)
}

// LastSeen returns the stored marker for a source key.
func (l *Ledger) LastSeen(sourceKey string) (string, bool) {
	m, ok := l.Markers[sourceKey]
	return m, ok
}

// SetMarker stores the latest observed marker for a source key.
func (l *Ledger) SetMarker(sourceKey, marker string) {
	if l.Markers == nil {
		l.Markers = map[string]string{}
	}
	l.Markers[sourceKey] = marker
}

// Truncate drops the oldest identifiers until at most bound remain.
// FIFO by insertion, deliberately not by freshness.
func (l *Ledger) Truncate(bound int) {
	if bound <= 0 || len(l.PostedIDs) <= bound {
		return
	}
	evicted := l.PostedIDs[:len(l.PostedIDs)-bound]
	l.PostedIDs = append([]string(nil), l.PostedIDs[len(l.PostedIDs)-bound:]...)
	for _, id := range evicted {
		delete(l.seen, id)
	}
}
