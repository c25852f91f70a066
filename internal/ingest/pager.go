package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/threadstock/threadstock/internal/backoff"
	"github.com/threadstock/threadstock/internal/mailbox"
	"github.com/threadstock/threadstock/internal/rate"
	"github.com/threadstock/threadstock/internal/state"
)

// staleAfter is how long a cursor may sit untouched before it is distrusted.
// A run that crashed mid-page would otherwise leave the query pinned to a page
// it never finished; restarting from page 0 can reprocess a bounded amount of
// mail, which message-level idempotence absorbs.
const staleAfter = time.Hour

// Pager walks a search query page by page, persisting its position so a
// time-boxed run can stop after any page and a later run continues where it
// left off.
type Pager struct {
	Mail    mailbox.Client
	Cursors *state.CursorStore
	Limiter rate.Limiter
	Backoff backoff.Policy
	Clock   func() time.Time
}

// NextPage returns the next batch of threads for query, or an empty slice
// when the query is exhausted. Callers loop until empty.
func (p *Pager) NextPage(ctx context.Context, query string, batchSize int) ([]mailbox.Thread, error) {
	cur, found, err := p.Cursors.Load(ctx, query)
	if err != nil {
		return nil, err
	}
	if found && cur.Done {
		if err := p.Cursors.Delete(ctx, query); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if found && p.clock().Sub(cur.UpdatedAt) > staleAfter {
		cur = state.Cursor{}
	}

	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	threads, err := backoff.RetryValue(ctx, p.Backoff, func() ([]mailbox.Thread, error) {
		return p.Mail.Search(ctx, mailbox.Query{Raw: query}, cur.Page*batchSize, batchSize)
	})
	if err != nil {
		return nil, fmt.Errorf("search %q page %d: %w", query, cur.Page, err)
	}

	if len(threads) == 0 {
		// Exhausted: dropping the cursor restarts from page 0 next time.
		if err := p.Cursors.Delete(ctx, query); err != nil {
			return nil, err
		}
		return nil, nil
	}

	next := state.Cursor{
		Page:      cur.Page + 1,
		UpdatedAt: p.clock(),
		Done:      len(threads) < batchSize,
	}
	if err := p.Cursors.Save(ctx, query, next); err != nil {
		return nil, err
	}
	return threads, nil
}

func (p *Pager) clock() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock()
}
