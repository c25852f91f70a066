package logsink

import (
	"context"
	"testing"
	"time"

	"github.com/threadstock/threadstock/internal/tabular"
)

func TestSheetSinkAppendsRow(t *testing.T) {
	store := tabular.NewMemory()
	store.Create("Logs", []string{"Time", "Level", "Source", "Message", "Detail"})

	now := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	sink := NewSheetSink(store, "Logs", nil)
	sink.Clock = func() time.Time { return now }

	sink.Append("INFO", "sales", "ingested sale", "m1")

	rows, err := store.Rows(context.Background(), "Logs")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus one entry", len(rows))
	}
	want := []string{now.Format(time.RFC3339), "INFO", "sales", "ingested sale", "m1"}
	for i, cell := range want {
		if rows[1][i] != cell {
			t.Fatalf("row = %v, want %v", rows[1], want)
		}
	}
}

func TestSheetSinkSwallowsBackendFailure(t *testing.T) {
	// Sheet never created: every append fails inside the store.
	sink := NewSheetSink(tabular.NewMemory(), "Logs", nil)
	sink.Append("ERROR", "sales", "write failed", "m2")
}

func TestSheetSinkWithoutSheetIsNoop(t *testing.T) {
	sink := NewSheetSink(nil, "", nil)
	sink.Append("INFO", "sales", "ignored", "")
	Noop{}.Append("INFO", "sales", "ignored", "")
}
