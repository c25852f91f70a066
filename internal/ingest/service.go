// Package ingest drives the mailbox→tabular pipeline: page through labeled
// threads, parse each message, write the record, label the thread, remember
// the message ID. Every remote call is rate-limited and retried; every piece
// of progress is durable, so a run killed at any point resumes cleanly.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/threadstock/threadstock/internal/backoff"
	"github.com/threadstock/threadstock/internal/logsink"
	"github.com/threadstock/threadstock/internal/mailbox"
	"github.com/threadstock/threadstock/internal/rate"
	"github.com/threadstock/threadstock/internal/records"
	"github.com/threadstock/threadstock/internal/state"
	"github.com/threadstock/threadstock/internal/tabular"
)

// Source is one ingestion category: the mailbox label feeding it and the
// parser turning its messages into records.
type Source struct {
	Category string
	Label    string
	Parse    func(mailbox.Message) (records.Record, bool)
}

// Service is the ingestion orchestrator. It expects to be the only pipeline
// instance running against the mailbox and store; overlapping invocations are
// not locked out, they can only duplicate work the label/ledger pair absorbs.
type Service struct {
	Mail       mailbox.Client
	Writer     records.Writer
	Ledger     *state.Ledger
	Pager      *Pager
	Limiter    rate.Limiter
	Backoff    backoff.Policy
	Log        *slog.Logger
	Sink       logsink.Sink
	Clock      func() time.Time
	DoneLabel  string
	ErrorLabel string
	BatchSize  int
}

// NewService constructs a Service with sane defaults.
func NewService(
	mail mailbox.Client,
	writer records.Writer,
	ledger *state.Ledger,
	cursors *state.CursorStore,
	limiter rate.Limiter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	retry := backoff.DefaultPolicy()
	return &Service{
		Mail:    mail,
		Writer:  writer,
		Ledger:  ledger,
		Limiter: limiter,
		Backoff: retry,
		Log:     logger,
		Sink:    logsink.Noop{},
		Clock:   time.Now,
		Pager: &Pager{
			Mail:    mail,
			Cursors: cursors,
			Limiter: limiter,
			Backoff: retry,
			Clock:   time.Now,
		},
		DoneLabel:  "crm/done",
		ErrorLabel: "crm/error",
		BatchSize:  25,
	}
}

// Run ingests every source in order. Categories are isolated: a failing one
// is logged and the rest still run; the returned error joins the per-category
// failures. Budget exhaustion (context deadline) stops the run early, and the
// cursors carry the position into the next invocation.
func (s *Service) Run(ctx context.Context, sources []Source) error {
	doneID, err := s.ensureLabel(ctx, s.DoneLabel)
	if err != nil {
		return fmt.Errorf("ensure label %q: %w", s.DoneLabel, err)
	}
	errorID, err := s.ensureLabel(ctx, s.ErrorLabel)
	if err != nil {
		return fmt.Errorf("ensure label %q: %w", s.ErrorLabel, err)
	}

	var errs []error
	for _, src := range sources {
		if err := s.runSource(ctx, src, doneID, errorID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Category, err))
			if ctx.Err() != nil {
				break
			}
			s.Log.Error("category ingestion failed", "category", src.Category, "error", err)
			s.Sink.Append("ERROR", src.Category, "category aborted", err.Error())
		}
	}
	return errors.Join(errs...)
}

func (s *Service) runSource(ctx context.Context, src Source, doneID, errorID mailbox.LabelID) error {
	query := fmt.Sprintf(`label:"%s" -label:"%s"`, src.Label, s.DoneLabel)
	for {
		threads, err := s.Pager.NextPage(ctx, query, s.BatchSize)
		if err != nil {
			return err
		}
		if len(threads) == 0 {
			s.Log.Info("category drained", "category", src.Category)
			return nil
		}
		for _, th := range threads {
			if err := s.processThread(ctx, src, th, doneID, errorID); err != nil {
				return err
			}
		}
	}
}

// processThread handles every message of one thread. Only category-fatal
// faults (configuration, context) are returned; per-message failures are
// labeled, logged, and left for the next run.
func (s *Service) processThread(ctx context.Context, src Source, th mailbox.Thread, doneID, errorID mailbox.LabelID) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	msgs, err := backoff.RetryValue(ctx, s.Backoff, func() ([]mailbox.Message, error) {
		return s.Mail.Messages(ctx, th.ID)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		s.labelQuiet(ctx, th.ID, errorID)
		s.Log.Error("fetch thread failed", "category", src.Category, "thread", th.ID, "error", err)
		s.Sink.Append("ERROR", src.Category, "fetch failed", err.Error())
		return nil
	}

	for _, msg := range msgs {
		// Ledger first: the done label is already excluded by the query, so
		// this is the cheap in-memory fast path, not the primary gate.
		if s.Ledger.Seen(msg.ID) {
			continue
		}

		rec, ok := src.Parse(msg)
		if !ok {
			// Terminal, not an error: mark it handled so a malformed mail
			// never blocks the queue.
			if err := s.addLabel(ctx, th.ID, doneID); err != nil {
				if ctx.Err() != nil {
					return err
				}
				s.Log.Error("label unparseable thread failed", "thread", th.ID, "error", err)
				continue
			}
			if err := s.Ledger.MarkSeen(ctx, msg.ID); err != nil {
				s.Log.Error("ledger mark failed", "message", msg.ID, "error", err)
				s.Sink.Append("ERROR", src.Category, "ledger mark failed", err.Error())
				continue
			}
			s.Log.Info("skipped unparseable message", "category", src.Category, "message", msg.ID)
			continue
		}

		writeErr := s.Backoff.Retry(ctx, func() error {
			return s.Writer.Write(ctx, rec)
		})
		if writeErr != nil {
			if ctx.Err() != nil {
				return writeErr
			}
			if errors.Is(writeErr, tabular.ErrSheetMissing) {
				// Configuration fault: nothing in this category can be
				// written, abort it and let the others run.
				return writeErr
			}
			s.labelQuiet(ctx, th.ID, errorID)
			s.Log.Error("write failed",
				"category", src.Category, "message", msg.ID, "error", writeErr)
			s.Sink.Append("ERROR", src.Category, "write failed: "+writeErr.Error(), string(msg.ID))
			// Not marked seen: eligible for retry on the next run.
			continue
		}

		if err := s.addLabel(ctx, th.ID, doneID); err != nil {
			if ctx.Err() != nil {
				return err
			}
			// Written but unlabeled: the next run reprocesses this message.
			// Upserts and counter bumps absorb that; appends may duplicate.
			s.Log.Error("label done failed", "thread", th.ID, "error", err)
			continue
		}
		if err := s.Ledger.MarkSeen(ctx, msg.ID); err != nil {
			s.Log.Error("ledger mark failed", "message", msg.ID, "error", err)
			s.Sink.Append("ERROR", src.Category, "ledger mark failed", err.Error())
			continue
		}
		s.Log.Info("ingested",
			"category", src.Category, "kind", rec.Kind(), "message", msg.ID)
		s.Sink.Append("INFO", src.Category, "ingested "+rec.Kind(), string(msg.ID))
	}
	return nil
}

func (s *Service) ensureLabel(ctx context.Context, name string) (mailbox.LabelID, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return backoff.RetryValue(ctx, s.Backoff, func() (mailbox.LabelID, error) {
		return s.Mail.EnsureLabel(ctx, name)
	})
}

func (s *Service) addLabel(ctx context.Context, id mailbox.ThreadID, label mailbox.LabelID) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.Backoff.Retry(ctx, func() error {
		return s.Mail.AddLabel(ctx, id, label)
	})
}

// labelQuiet applies a status label on a best-effort basis; the thread will
// resurface through the query either way.
func (s *Service) labelQuiet(ctx context.Context, id mailbox.ThreadID, label mailbox.LabelID) {
	if err := s.addLabel(ctx, id, label); err != nil {
		s.Log.Debug("status label failed", "thread", id, "error", err)
	}
}

func (s *Service) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}
