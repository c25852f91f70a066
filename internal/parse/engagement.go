package parse

import (
	"regexp"

	"github.com/threadstock/threadstock/internal/mailbox"
	"github.com/threadstock/threadstock/internal/records"
)

var (
	engagementSKU = regexp.MustCompile(`(?mi)^(?:SKU|R[ée]f(?:erence)?)\s*:\s*(\S+)`)
	favoriteHint  = regexp.MustCompile(`(?i)favou?rite|favori`)
	offerHint     = regexp.MustCompile(`(?i)offer|offre`)
)

// Engagement parses favorite/offer notifications. The subject names the kind;
// the sku comes from a reference line in the body. Without a sku there is no
// counter to bump, so the message is unparseable.
func Engagement(m mailbox.Message) (records.Record, bool) {
	sm := engagementSKU.FindStringSubmatch(m.Body)
	if sm == nil {
		return nil, false
	}
	var kind records.EngagementKind
	switch {
	case favoriteHint.MatchString(m.Subject):
		kind = records.EngagementFavorite
	case offerHint.MatchString(m.Subject):
		kind = records.EngagementOffer
	default:
		return nil, false
	}
	return records.EngagementEvent{SKU: sm[1], Action: kind}, true
}
