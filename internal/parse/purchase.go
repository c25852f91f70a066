package parse

import (
	"regexp"
	"strings"
	"time"

	"github.com/threadstock/threadstock/internal/mailbox"
	"github.com/threadstock/threadstock/internal/records"
)

var (
	purchaseSupplier = regexp.MustCompile(`(?mi)^(?:Supplier|Fournisseur)\s*:\s*(.+)$`)
	purchaseDate     = regexp.MustCompile(`(?mi)^Date\s*:\s*(.+)$`)
	purchasePrice    = regexp.MustCompile(`(?mi)^(?:Price|Prix|Montant)\s*:\s*(.+)$`)
	purchaseBrand    = regexp.MustCompile(`(?mi)^(?:Brand|Marque)\s*:\s*(.+)$`)
	purchaseSize     = regexp.MustCompile(`(?mi)^(?:Size|Taille)\s*:\s*(.+)$`)
)

var purchaseDateLayouts = []string{"2006-01-02", "02/01/2006", "02.01.2006"}

// Purchase parses a sourcing notification: key/value lines with at least a
// supplier. A missing or malformed date falls back to the message date.
func Purchase(m mailbox.Message) (records.Record, bool) {
	sm := purchaseSupplier.FindStringSubmatch(m.Body)
	if sm == nil {
		return nil, false
	}
	p := records.PurchaseEvent{
		Supplier: strings.TrimSpace(sm[1]),
		Date:     m.Date,
	}
	if dm := purchaseDate.FindStringSubmatch(m.Body); dm != nil {
		if d, ok := parseDay(strings.TrimSpace(dm[1])); ok {
			p.Date = d
		}
	}
	if pm := purchasePrice.FindStringSubmatch(m.Body); pm != nil {
		p.Price = Amount(pm[1])
	}
	if bm := purchaseBrand.FindStringSubmatch(m.Body); bm != nil {
		p.Brand = strings.TrimSpace(bm[1])
	}
	if zm := purchaseSize.FindStringSubmatch(m.Body); zm != nil {
		p.Size = strings.TrimSpace(zm[1])
	}
	return p, true
}

func parseDay(s string) (time.Time, bool) {
	for _, layout := range purchaseDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
