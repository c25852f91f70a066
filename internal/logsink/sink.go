// Package logsink is the operator-facing log: a sheet the dashboard tails.
// Appends are fire-and-forget and never block or fail the pipeline.
package logsink

import (
	"context"
	"log/slog"
	"time"

	"github.com/threadstock/threadstock/internal/tabular"
)

type Sink interface {
	Append(level, source, message, detail string)
}

// Noop discards everything.
type Noop struct{}

func (Noop) Append(string, string, string, string) {}

// SheetSink appends one row per entry to a log sheet. Errors are demoted to
// debug logging; a broken log sheet must not take ingestion down.
type SheetSink struct {
	Store   tabular.Store
	Sheet   string
	Log     *slog.Logger
	Clock   func() time.Time
	Timeout time.Duration
}

func NewSheetSink(store tabular.Store, sheet string, log *slog.Logger) *SheetSink {
	return &SheetSink{
		Store:   store,
		Sheet:   sheet,
		Log:     log,
		Clock:   time.Now,
		Timeout: 10 * time.Second,
	}
}

func (s *SheetSink) Append(level, source, message, detail string) {
	if s.Store == nil || s.Sheet == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	row := []string{s.Clock().Format(time.RFC3339), level, source, message, detail}
	if err := s.Store.Append(ctx, s.Sheet, [][]string{row}); err != nil && s.Log != nil {
		s.Log.Debug("log sink append failed", "error", err)
	}
}

var (
	_ Sink = Noop{}
	_ Sink = (*SheetSink)(nil)
)
