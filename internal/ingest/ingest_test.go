package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/threadstock/threadstock/internal/mailbox"
	"github.com/threadstock/threadstock/internal/records"
)

// fakeMail is an in-memory mailbox. Threads are queued per source label and
// served through offset/limit windows the way the real adapter does.
type fakeMail struct {
	mu sync.Mutex

	queues   map[string][]mailbox.Thread
	messages map[mailbox.ThreadID][]mailbox.Message

	searchErr   error
	messagesErr map[mailbox.ThreadID]error
	addLabelErr error

	offsets []int
	labels  map[string]mailbox.LabelID
	applied map[mailbox.ThreadID][]mailbox.LabelID
}

func newFakeMail() *fakeMail {
	return &fakeMail{
		queues:      make(map[string][]mailbox.Thread),
		messages:    make(map[mailbox.ThreadID][]mailbox.Message),
		messagesErr: make(map[mailbox.ThreadID]error),
		labels:      make(map[string]mailbox.LabelID),
		applied:     make(map[mailbox.ThreadID][]mailbox.LabelID),
	}
}

// add queues n single-message threads under label, bodies all set to body.
func (f *fakeMail) add(label string, n int, body string) {
	for i := 0; i < n; i++ {
		id := mailbox.ThreadID(fmt.Sprintf("%s-t%d", label, i))
		f.queues[label] = append(f.queues[label], mailbox.Thread{ID: id})
		f.messages[id] = []mailbox.Message{{
			ID:      mailbox.MessageID(fmt.Sprintf("%s-m%d", label, i)),
			Thread:  id,
			Subject: "notification",
			Body:    body,
		}}
	}
}

// queryLabel extracts the source label from a query like label:"x" -label:"y".
func queryLabel(raw string) string {
	start := strings.Index(raw, `"`)
	if start < 0 {
		return raw
	}
	rest := raw[start+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return raw
	}
	return rest[:end]
}

func (f *fakeMail) Search(_ context.Context, q mailbox.Query, offset, limit int) ([]mailbox.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	list := f.queues[queryLabel(q.Raw)]
	if offset >= len(list) {
		return nil, nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	out := make([]mailbox.Thread, end-offset)
	copy(out, list[offset:end])
	return out, nil
}

func (f *fakeMail) Messages(_ context.Context, id mailbox.ThreadID) ([]mailbox.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.messagesErr[id]; err != nil {
		return nil, err
	}
	return f.messages[id], nil
}

func (f *fakeMail) AddLabel(_ context.Context, id mailbox.ThreadID, label mailbox.LabelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addLabelErr != nil {
		return f.addLabelErr
	}
	f.applied[id] = append(f.applied[id], label)
	return nil
}

func (f *fakeMail) EnsureLabel(_ context.Context, name string) (mailbox.LabelID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.labels[name]; ok {
		return id, nil
	}
	id := mailbox.LabelID("L-" + name)
	f.labels[name] = id
	return id, nil
}

func (f *fakeMail) hasLabel(id mailbox.ThreadID, label mailbox.LabelID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.applied[id] {
		if l == label {
			return true
		}
	}
	return false
}

var _ mailbox.Client = (*fakeMail)(nil)

// fakeWriter records writes and can be told to fail per record.
type fakeWriter struct {
	recs []records.Record
	fail func(records.Record) error
}

func (w *fakeWriter) Write(_ context.Context, rec records.Record) error {
	if w.fail != nil {
		if err := w.fail(rec); err != nil {
			return err
		}
	}
	w.recs = append(w.recs, rec)
	return nil
}

var errWriteBoom = errors.New("backend unavailable")

var _ records.Writer = (*fakeWriter)(nil)
