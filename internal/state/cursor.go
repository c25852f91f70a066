package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CursorPrefix namespaces pagination cursors in the KV store; the full key is
// CursorPrefix plus the exact query string the cursor belongs to.
const CursorPrefix = "THREAD_CURSOR::"

// Cursor is the resumable position of one paged search query.
type Cursor struct {
	Page      int       `json:"page"`
	UpdatedAt time.Time `json:"ts"`
	Done      bool      `json:"done"`
}

// CursorStore persists cursors keyed by query string.
type CursorStore struct {
	kv KV
}

func NewCursorStore(kv KV) *CursorStore {
	return &CursorStore{kv: kv}
}

func (c *CursorStore) Load(ctx context.Context, query string) (Cursor, bool, error) {
	raw, ok, err := c.kv.Get(ctx, CursorPrefix+query)
	if err != nil {
		return Cursor{}, false, fmt.Errorf("load cursor %q: %w", query, err)
	}
	if !ok {
		return Cursor{}, false, nil
	}
	var cur Cursor
	if err := json.Unmarshal(raw, &cur); err != nil {
		return Cursor{}, false, fmt.Errorf("decode cursor %q: %w", query, err)
	}
	return cur, true, nil
}

func (c *CursorStore) Save(ctx context.Context, query string, cur Cursor) error {
	raw, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("encode cursor %q: %w", query, err)
	}
	if err := c.kv.Put(ctx, CursorPrefix+query, raw); err != nil {
		return fmt.Errorf("persist cursor %q: %w", query, err)
	}
	return nil
}

func (c *CursorStore) Delete(ctx context.Context, query string) error {
	if err := c.kv.Delete(ctx, CursorPrefix+query); err != nil {
		return fmt.Errorf("delete cursor %q: %w", query, err)
	}
	return nil
}

// Clear removes every persisted cursor. Maintenance surface.
func (c *CursorStore) Clear(ctx context.Context) error {
	keys, err := c.kv.Keys(ctx, CursorPrefix)
	if err != nil {
		return fmt.Errorf("list cursors: %w", err)
	}
	for _, k := range keys {
		if err := c.kv.Delete(ctx, k); err != nil {
			return fmt.Errorf("delete cursor key %s: %w", k, err)
		}
	}
	return nil
}
