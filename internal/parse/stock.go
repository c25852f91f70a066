package parse

import (
	"encoding/json"
	"strings"

	"github.com/threadstock/threadstock/internal/mailbox"
	"github.com/threadstock/threadstock/internal/records"
)

// stockPayload mirrors the JSON snapshot the listing tool mails in.
type stockPayload struct {
	SKU       string   `json:"sku"`
	Title     string   `json:"title"`
	Photos    []string `json:"photos"`
	Category  string   `json:"category"`
	Brand     string   `json:"brand"`
	Size      string   `json:"size"`
	Condition string   `json:"condition"`
	Platform  string   `json:"platform"`
}

// Stock parses a stock-intake message whose body carries a JSON payload.
// A body without a JSON object, or one without a sku, is unparseable.
func Stock(m mailbox.Message) (records.Record, bool) {
	body := m.Body
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var payload stockPayload
	if err := json.Unmarshal([]byte(body[start:end+1]), &payload); err != nil {
		return nil, false
	}
	sku := strings.TrimSpace(payload.SKU)
	if sku == "" {
		return nil, false
	}
	return records.StockItem{
		SKU:       sku,
		Title:     strings.TrimSpace(payload.Title),
		Photos:    payload.Photos,
		Category:  strings.TrimSpace(payload.Category),
		Brand:     strings.TrimSpace(payload.Brand),
		Size:      strings.TrimSpace(payload.Size),
		Condition: strings.TrimSpace(payload.Condition),
		Platform:  strings.TrimSpace(payload.Platform),
	}, true
}
