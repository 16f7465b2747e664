package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lox/roomwager/internal/fileutil"
)

type snapshot struct {
	SavedAt  time.Time        `json:"saved_at"`
	Balances map[string]int64 `json:"balances"`
}

// SaveSnapshot atomically writes every known balance to path
func (m *Memory) SaveSnapshot(path string) error {
	m.mu.Lock()
	snap := snapshot{SavedAt: time.Now().UTC(), Balances: make(map[string]int64, len(m.balances))}
	for user, b := range m.balances {
		snap.Balances[user] = b
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o600)
}

// LoadSnapshot restores balances saved by SaveSnapshot. A missing file is
// not an error. It returns the number of balances restored.
func (m *Memory) LoadSnapshot(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for user, b := range snap.Balances {
		m.balances[user] = b
	}
	return len(snap.Balances), nil
}
