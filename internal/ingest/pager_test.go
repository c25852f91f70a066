package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/threadstock/threadstock/internal/backoff"
	"github.com/threadstock/threadstock/internal/mailbox"
	"github.com/threadstock/threadstock/internal/state"
)

const pagerQuery = `label:"inbox" -label:"crm/done"`

func newTestPager(mail *fakeMail, clock func() time.Time) (*Pager, *state.CursorStore) {
	cursors := state.NewCursorStore(state.NewMemory())
	return &Pager{
		Mail:    mail,
		Cursors: cursors,
		Backoff: backoff.Policy{},
		Clock:   clock,
	}, cursors
}

func TestPagerVisitsEveryThreadOnce(t *testing.T) {
	ctx := context.Background()
	mail := newFakeMail()
	mail.add("inbox", 7, "body")
	pager, cursors := newTestPager(mail, nil)

	seen := map[mailbox.ThreadID]int{}
	pages := 0
	for {
		threads, err := pager.NextPage(ctx, pagerQuery, 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(threads) == 0 {
			break
		}
		pages++
		for _, th := range threads {
			seen[th.ID]++
		}
	}

	if pages != 3 {
		t.Fatalf("pages = %d, want 3", pages)
	}
	if len(seen) != 7 {
		t.Fatalf("visited %d threads, want 7", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("thread %s visited %d times", id, n)
		}
	}
	if _, found, _ := cursors.Load(ctx, pagerQuery); found {
		t.Fatal("cursor should be deleted after exhaustion")
	}
}

func TestPagerShortPageMarksDoneWithoutExtraSearch(t *testing.T) {
	ctx := context.Background()
	mail := newFakeMail()
	mail.add("inbox", 4, "body")
	pager, _ := newTestPager(mail, nil)

	// Pages of 3 then 1. The short page sets the done flag, so the follow-up
	// call returns empty from the cursor alone.
	for i := 0; i < 2; i++ {
		if _, err := pager.NextPage(ctx, pagerQuery, 3); err != nil {
			t.Fatal(err)
		}
	}
	threads, err := pager.NextPage(ctx, pagerQuery, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 0 {
		t.Fatalf("expected exhaustion, got %d threads", len(threads))
	}
	if len(mail.offsets) != 2 {
		t.Fatalf("searches = %d, want 2", len(mail.offsets))
	}
}

func TestPagerResumesFromSavedCursor(t *testing.T) {
	ctx := context.Background()
	mail := newFakeMail()
	mail.add("inbox", 9, "body")
	pager, cursors := newTestPager(mail, nil)

	cur := state.Cursor{Page: 2, UpdatedAt: time.Now()}
	if err := cursors.Save(ctx, pagerQuery, cur); err != nil {
		t.Fatal(err)
	}

	threads, err := pager.NextPage(ctx, pagerQuery, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 3 {
		t.Fatalf("len = %d, want 3", len(threads))
	}
	if mail.offsets[0] != 6 {
		t.Fatalf("offset = %d, want 6", mail.offsets[0])
	}
}

func TestPagerResetsStaleCursor(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	mail := newFakeMail()
	mail.add("inbox", 9, "body")
	pager, cursors := newTestPager(mail, func() time.Time { return now })

	stale := state.Cursor{Page: 2, UpdatedAt: now.Add(-61 * time.Minute)}
	if err := cursors.Save(ctx, pagerQuery, stale); err != nil {
		t.Fatal(err)
	}

	if _, err := pager.NextPage(ctx, pagerQuery, 3); err != nil {
		t.Fatal(err)
	}
	if mail.offsets[0] != 0 {
		t.Fatalf("offset = %d, want 0 after staleness reset", mail.offsets[0])
	}
	cur, found, err := cursors.Load(ctx, pagerQuery)
	if err != nil || !found {
		t.Fatalf("cursor missing after reset (found=%v err=%v)", found, err)
	}
	if cur.Page != 1 || !cur.UpdatedAt.Equal(now) {
		t.Fatalf("cursor = %+v, want page 1 at %v", cur, now)
	}
}

func TestPagerKeepsFreshCursor(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	mail := newFakeMail()
	mail.add("inbox", 9, "body")
	pager, cursors := newTestPager(mail, func() time.Time { return now })

	fresh := state.Cursor{Page: 1, UpdatedAt: now.Add(-59 * time.Minute)}
	if err := cursors.Save(ctx, pagerQuery, fresh); err != nil {
		t.Fatal(err)
	}

	if _, err := pager.NextPage(ctx, pagerQuery, 3); err != nil {
		t.Fatal(err)
	}
	if mail.offsets[0] != 3 {
		t.Fatalf("offset = %d, want 3", mail.offsets[0])
	}
}

func TestPagerDeletesDoneCursor(t *testing.T) {
	ctx := context.Background()
	mail := newFakeMail()
	mail.add("inbox", 9, "body")
	pager, cursors := newTestPager(mail, nil)

	done := state.Cursor{Page: 3, UpdatedAt: time.Now(), Done: true}
	if err := cursors.Save(ctx, pagerQuery, done); err != nil {
		t.Fatal(err)
	}

	threads, err := pager.NextPage(ctx, pagerQuery, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 0 {
		t.Fatalf("expected empty page, got %d threads", len(threads))
	}
	if len(mail.offsets) != 0 {
		t.Fatal("done cursor must not trigger a search")
	}
	if _, found, _ := cursors.Load(ctx, pagerQuery); found {
		t.Fatal("done cursor should be deleted")
	}
}
