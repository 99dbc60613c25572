package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore persists the ledger as a single JSON document. Writes go to a
// temp file in the same directory followed by a rename, so readers never
// observe a truncated ledger after a crash.
type FileStore struct {
	path string
	log  *slog.Logger
}

// NewFile creates a file-backed store at path.
func NewFile(path string, log *slog.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

// Load reads the ledger file. A missing file yields an empty ledger; corrupt
// or legacy-format data is logged and treated as empty so baselines get
// rebuilt instead of crashing the run.
func (s *FileStore) Load(_ context.Context) (Ledger, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return s.decode(data), nil
}

// decode probes the on-disk shape. The current layout is
// channel-key -> app-id -> {ids, name}; the legacy layout stored a flat id
// array per channel with no app partitioning and is treated as empty.
func (s *FileStore) decode(data []byte) Ledger {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn("ledger file unreadable, starting empty", "path", s.path, "error", err)
		return New()
	}

	l := New()
	for channelKey, rawState := range raw {
		var state ChannelState
		if err := json.Unmarshal(rawState, &state); err != nil {
			var legacy []int64
			if json.Unmarshal(rawState, &legacy) == nil {
				s.log.Warn("legacy ledger entry, rebuilding baseline", "channel", channelKey)
			} else {
				s.log.Warn("malformed ledger entry, rebuilding baseline", "channel", channelKey, "error", err)
			}
			l[channelKey] = make(ChannelState)
			continue
		}
		for appKey, e := range state {
			if e == nil {
				state[appKey] = &Entry{}
			}
		}
		l[channelKey] = state
	}
	return l
}

// Save writes the ledger atomically.
func (s *FileStore) Save(_ context.Context, l Ledger) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
