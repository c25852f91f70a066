// internal/runtime/googleapi.go — adapts *gmail.Service to the mailbox interface
package runtime

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"google.golang.org/api/gmail/v1"

	"github.com/threadstock/threadstock/internal/mailbox"
)

// listPageCap is the largest page the Threads.List API serves.
const listPageCap = 500

// GmailAdapter implements mailbox.Client on the Gmail REST API. Offsets are
// emulated by walking page tokens; the API itself only pages forward.
type GmailAdapter struct{ svc *gmail.Service }

func NewGmailAdapter(svc *gmail.Service) *GmailAdapter { return &GmailAdapter{svc} }

func (g *GmailAdapter) Search(ctx context.Context, q mailbox.Query, offset, limit int) ([]mailbox.Thread, error) {
	var out []mailbox.Thread
	skip := offset
	token := ""
	for {
		want := skip + limit - len(out)
		if want > listPageCap {
			want = listPageCap
		}
		call := g.svc.Users.Threads.List("me").Q(q.Raw).MaxResults(int64(want))
		if token != "" {
			call = call.PageToken(token)
		}
		res, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("list threads: %w", err)
		}
		for _, t := range res.Threads {
			if skip > 0 {
				skip--
				continue
			}
			if len(out) < limit {
				out = append(out, mailbox.Thread{ID: mailbox.ThreadID(t.Id)})
			}
		}
		if len(out) >= limit || res.NextPageToken == "" {
			return out, nil
		}
		token = res.NextPageToken
	}
}

func (g *GmailAdapter) Messages(ctx context.Context, id mailbox.ThreadID) ([]mailbox.Message, error) {
	th, err := g.svc.Users.Threads.Get("me", string(id)).Format("minimal").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", id, err)
	}
	out := make([]mailbox.Message, 0, len(th.Messages))
	for _, m := range th.Messages {
		raw, err := g.svc.Users.Messages.Get("me", m.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", m.Id, err)
		}
		data, err := decodeWeb64(raw.Raw)
		if err != nil {
			return nil, fmt.Errorf("decode message %s: %w", m.Id, err)
		}
		msg, err := parseEmail(data)
		if err != nil {
			return nil, fmt.Errorf("parse message %s: %w", m.Id, err)
		}
		msg.ID = mailbox.MessageID(m.Id)
		msg.Thread = id
		out = append(out, msg)
	}
	return out, nil
}

func (g *GmailAdapter) AddLabel(ctx context.Context, id mailbox.ThreadID, label mailbox.LabelID) error {
	req := &gmail.ModifyThreadRequest{AddLabelIds: []string{string(label)}}
	if _, err := g.svc.Users.Threads.Modify("me", string(id), req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("label thread %s: %w", id, err)
	}
	return nil
}

func (g *GmailAdapter) EnsureLabel(ctx context.Context, name string) (mailbox.LabelID, error) {
	lr, err := g.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range lr.Labels {
		if l.Name == name {
			return mailbox.LabelID(l.Id), nil
		}
	}
	created, err := g.svc.Users.Labels.Create("me", &gmail.Label{Name: name}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return mailbox.LabelID(created.Id), nil
}

var _ mailbox.Client = (*GmailAdapter)(nil)

// decodeWeb64 handles both padded and unpadded web-safe base64; the API is
// inconsistent about padding.
func decodeWeb64(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// parseEmail extracts the headers and the first text/plain body of a raw
// RFC 822 message.
func parseEmail(data []byte) (mailbox.Message, error) {
	entity, err := message.Read(bytes.NewReader(data))
	if err != nil && !message.IsUnknownCharset(err) {
		return mailbox.Message{}, err
	}

	var msg mailbox.Message
	header := entity.Header
	msg.From = header.Get("From")
	msg.Subject = decodeHeader(header.Get("Subject"))
	if dateStr := header.Get("Date"); dateStr != "" {
		if t, err := mail.ParseDate(dateStr); err == nil {
			msg.Date = t
		}
	}
	if msg.Date.IsZero() {
		msg.Date = time.Now()
	}
	msg.Body = textBody(entity)
	return msg, nil
}

// textBody walks the MIME tree for the first text/plain part.
func textBody(entity *message.Entity) string {
	mediaType, _, err := entity.Header.ContentType()
	if err != nil {
		mediaType = "text/plain"
	}
	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return ""
			}
			if body := textBody(part); body != "" {
				return body
			}
		}
		return ""
	}
	if !strings.HasPrefix(mediaType, "text/plain") {
		return ""
	}
	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

// decodeHeader decodes RFC 2047 encoded header values.
func decodeHeader(s string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}
