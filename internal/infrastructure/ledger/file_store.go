package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/ports"
)

// FileStore persists the history ledger as a single JSON document.
// Older deployments stored a bare array of identifiers; Load upgrades that
// format transparently.
type FileStore struct {
	path       string
	maxEntries int
	logger     *slog.Logger
}

var _ ports.HistoryStore = (*FileStore)(nil)

// NewFileStore wires the ledger file path and the retention bound.
func NewFileStore(path string, maxEntries int, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, maxEntries: maxEntries, logger: logger}
}

// Load reads the ledger from disk. A missing or corrupt file yields an empty
// ledger and a diagnostic error for logging; it is never fatal.
func (s *FileStore) Load() (*domain.Ledger, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewLedger(), nil
		}
		return domain.NewLedger(), fmt.Errorf("read ledger %s: %w", s.path, err)
	}

	var led domain.Ledger
	if err := json.Unmarshal(raw, &led); err == nil {
		led.Reindex()
		return &led, nil
	}

	// Legacy format: a bare JSON array of posted identifiers.
	var legacy []string
	if err := json.Unmarshal(raw, &legacy); err == nil {
		upgraded := domain.NewLedger()
		for _, id := range legacy {
			upgraded.Record(id)
		}
		s.debug("upgraded legacy ledger format", "entries", len(legacy))
		return upgraded, nil
	}

	return domain.NewLedger(), fmt.Errorf("ledger %s is corrupt, starting empty", s.path)
}

// Save truncates the ledger to the retention bound and writes it atomically:
// a temp file in the same directory renamed over the old copy, so a torn
// write can never leave a half-document behind for the next Load.
func (s *FileStore) Save(led *domain.Ledger) error {
	if led == nil {
		return nil
	}
	led.Truncate(s.maxEntries)

	raw, err := json.Marshal(led)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".scout_history-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp ledger: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace ledger %s: %w", s.path, err)
	}

	return nil
}

func (s *FileStore) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
