package mailbox

import "time"

type MessageID string
type ThreadID string
type LabelID string

// Thread groups the messages of one mailbox conversation. Threads are never
// deleted by the pipeline, only labeled.
type Thread struct {
	ID     ThreadID
	Labels []LabelID
}

// Message is the flattened view of a single mail the parsers work on: headers
// already decoded, body reduced to the text part.
type Message struct {
	ID      MessageID
	Thread  ThreadID
	From    string // RFC 5322 From header, as received
	Subject string
	Body    string // decoded text/plain part
	Date    time.Time
}

// Query is a mailbox search string, already formed
// (e.g. `label:"crm/stock" -label:"crm/done"`).
type Query struct {
	Raw string
}
