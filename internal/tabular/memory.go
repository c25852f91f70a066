package tabular

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store. It backs the offline mode and the package
// tests; sheets must be created before use so a missing-sheet configuration
// fault behaves like the remote backends.
type Memory struct {
	mu     sync.RWMutex
	sheets map[string][][]string
}

func NewMemory() *Memory {
	return &Memory{sheets: make(map[string][][]string)}
}

// Create registers a sheet with the given header row. Creating an existing
// sheet resets it.
func (m *Memory) Create(sheet string, header []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet] = [][]string{append([]string(nil), header...)}
}

func (m *Memory) Rows(_ context.Context, sheet string) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetMissing, sheet)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (m *Memory) SetRows(_ context.Context, sheet string, startRow int, rows [][]string) error {
	if startRow < 1 {
		return fmt.Errorf("start row %d out of range", startRow)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSheetMissing, sheet)
	}
	for i, r := range rows {
		idx := startRow - 1 + i
		for len(existing) <= idx {
			existing = append(existing, nil)
		}
		existing[idx] = append([]string(nil), r...)
	}
	m.sheets[sheet] = existing
	return nil
}

func (m *Memory) Append(_ context.Context, sheet string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSheetMissing, sheet)
	}
	for _, r := range rows {
		existing = append(existing, append([]string(nil), r...))
	}
	m.sheets[sheet] = existing
	return nil
}

func (m *Memory) SetCell(_ context.Context, sheet string, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("cell %d,%d out of range", row, col)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSheetMissing, sheet)
	}
	for len(existing) < row {
		existing = append(existing, nil)
	}
	r := existing[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	existing[row-1] = r
	m.sheets[sheet] = existing
	return nil
}

var _ Store = (*Memory)(nil)
