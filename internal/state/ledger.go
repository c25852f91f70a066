package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/threadstock/threadstock/internal/mailbox"
)

// LedgerKey is where the processed-ID ledger lives in the KV store.
const LedgerKey = "PROC_IDS"

// maxLedgerEntries bounds the ledger. Eviction means a very old message
// re-appearing in a query could be reprocessed; that is acceptable because
// the done label is the primary guard and the ledger is only the fast path.
const maxLedgerEntries = 500

// Ledger remembers which message IDs have already been handled. It is loaded
// once per run and written through on every mutation; there is no hidden
// process-wide cache.
type Ledger struct {
	kv    KV
	clock func() time.Time
	seen  map[mailbox.MessageID]time.Time
}

// LoadLedger reads the persisted ledger, starting empty when none exists.
func LoadLedger(ctx context.Context, kv KV) (*Ledger, error) {
	l := &Ledger{kv: kv, clock: time.Now, seen: make(map[mailbox.MessageID]time.Time)}
	raw, ok, err := kv.Get(ctx, LedgerKey)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &l.seen); err != nil {
			return nil, fmt.Errorf("decode ledger: %w", err)
		}
	}
	return l, nil
}

// SetClock overrides the timestamp source. Tests only.
func (l *Ledger) SetClock(clock func() time.Time) {
	l.clock = clock
}

// Seen reports whether id is currently present in the ledger.
func (l *Ledger) Seen(id mailbox.MessageID) bool {
	_, ok := l.seen[id]
	return ok
}

// MarkSeen inserts or refreshes id with the current timestamp, prunes the
// ledger to its bound, and persists the whole ledger. Write-through is a
// deliberate simplicity/latency trade-off: entries are small.
func (l *Ledger) MarkSeen(ctx context.Context, id mailbox.MessageID) error {
	l.seen[id] = l.clock()
	l.prune()
	raw, err := json.Marshal(l.seen)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := l.kv.Put(ctx, LedgerKey, raw); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Len reports the number of tracked IDs.
func (l *Ledger) Len() int {
	return len(l.seen)
}

// prune evicts oldest-timestamp entries until the bound is respected.
func (l *Ledger) prune() {
	if len(l.seen) <= maxLedgerEntries {
		return
	}
	type entry struct {
		id mailbox.MessageID
		ts time.Time
	}
	entries := make([]entry, 0, len(l.seen))
	for id, ts := range l.seen {
		entries = append(entries, entry{id, ts})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })
	for _, e := range entries[:len(entries)-maxLedgerEntries] {
		delete(l.seen, e.id)
	}
}

// ClearLedger drops the persisted ledger. Maintenance surface.
func ClearLedger(ctx context.Context, kv KV) error {
	return kv.Delete(ctx, LedgerKey)
}
