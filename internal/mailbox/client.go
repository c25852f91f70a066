package mailbox

import "context"

// Client is the narrow mailbox surface required by the ingestion pipeline.
// Search is offset-based so the pagination cursor can store a plain page
// number; adapters over token-paged APIs translate internally.
type Client interface {
	Search(ctx context.Context, q Query, offset, limit int) ([]Thread, error)
	Messages(ctx context.Context, id ThreadID) ([]Message, error)
	AddLabel(ctx context.Context, id ThreadID, label LabelID) error
	EnsureLabel(ctx context.Context, name string) (LabelID, error)
}
