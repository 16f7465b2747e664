// Package results persists finished games outside the ledger.
package results

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/lox/roomwager/internal/engine"
)

// FileRecorder appends one JSON document per finished game to a file
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
}

var _ engine.Recorder = (*FileRecorder)(nil)

// OpenFile opens path for appending, creating it if needed
func OpenFile(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	return &FileRecorder{file: f}, nil
}

func (r *FileRecorder) RecordGameResult(_ context.Context, result engine.GameResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(data); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// Close closes the underlying file
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// ReadFile loads every result recorded in path
func ReadFile(path string) ([]engine.GameResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []engine.GameResult
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var gr engine.GameResult
		if err := json.Unmarshal(sc.Bytes(), &gr); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, gr)
	}
	return out, sc.Err()
}

// Multi fans a result out to several recorders. Every recorder is tried;
// the errors are joined.
type Multi []engine.Recorder

func (m Multi) RecordGameResult(ctx context.Context, result engine.GameResult) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordGameResult(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
