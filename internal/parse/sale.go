package parse

import (
	"regexp"
	"strings"

	"github.com/threadstock/threadstock/internal/mailbox"
	"github.com/threadstock/threadstock/internal/records"
)

// saleFormat describes one marketplace's sale-notification shape. The sender
// domain or subject selects the format; title and price are then extracted
// from the body.
type saleFormat struct {
	platform records.Platform
	sender   *regexp.Regexp
	subject  *regexp.Regexp
	title    *regexp.Regexp // submatch 1
	price    *regexp.Regexp // submatch 1
	sku      *regexp.Regexp // submatch 1, optional line
}

var saleFormats = []saleFormat{
	{
		platform: records.PlatformVinted,
		sender:   regexp.MustCompile(`@vinted\.`),
		subject:  regexp.MustCompile(`(?i)vendu`),
		title:    regexp.MustCompile(`(?m)^Article\s*:\s*(.+)$`),
		price:    regexp.MustCompile(`(?m)^Prix\s*:\s*(.+)$`),
		sku:      regexp.MustCompile(`(?m)^R[ée]f\s*:\s*(\S+)`),
	},
	{
		platform: records.PlatformVestiaire,
		sender:   regexp.MustCompile(`@vestiairecollective\.`),
		subject:  regexp.MustCompile(`(?i)item has been sold`),
		title:    regexp.MustCompile(`(?m)^Item\s*:\s*(.+)$`),
		price:    regexp.MustCompile(`(?m)^Sale price\s*:\s*(.+)$`),
		sku:      regexp.MustCompile(`(?m)^Reference\s*:\s*(\S+)`),
	},
	{
		platform: records.PlatformEBay,
		sender:   regexp.MustCompile(`@ebay\.`),
		subject:  regexp.MustCompile(`(?i)your item sold`),
		title:    regexp.MustCompile(`(?m)^Item\s*:\s*(.+)$`),
		price:    regexp.MustCompile(`(?m)^Sold for\s*:\s*(.+)$`),
		sku:      regexp.MustCompile(`(?m)^Custom label\s*:\s*(\S+)`),
	},
	{
		platform: records.PlatformLeboncoin,
		sender:   regexp.MustCompile(`@leboncoin\.`),
		subject:  regexp.MustCompile(`(?i)vendu`),
		title:    regexp.MustCompile(`(?m)^Annonce\s*:\s*(.+)$`),
		price:    regexp.MustCompile(`(?m)^Montant\s*:\s*(.+)$`),
		sku:      regexp.MustCompile(`(?m)^R[ée]f\s*:\s*(\S+)`),
	},
	{
		platform: records.PlatformWhatnot,
		sender:   regexp.MustCompile(`@whatnot\.`),
		subject:  regexp.MustCompile(`(?i)you made a sale`),
		title:    regexp.MustCompile(`(?m)^Product\s*:\s*(.+)$`),
		price:    regexp.MustCompile(`(?m)^Sale amount\s*:\s*(.+)$`),
		sku:      regexp.MustCompile(`(?m)^SKU\s*:\s*(\S+)`),
	},
}

// Forwarded notifications lose the original sender, so a structured block is
// accepted as a fallback. The Platform line must match the enum exactly
// (case-sensitive).
var (
	genericPlatform = regexp.MustCompile(`(?m)^Platform\s*:\s*(\S+)`)
	genericTitle    = regexp.MustCompile(`(?m)^Title\s*:\s*(.+)$`)
	genericPrice    = regexp.MustCompile(`(?m)^Price\s*:\s*(.+)$`)
	genericSKU      = regexp.MustCompile(`(?m)^SKU\s*:\s*(\S+)`)
)

// Sale parses a sale notification from any of the five marketplaces.
func Sale(m mailbox.Message) (records.Record, bool) {
	from := strings.ToLower(m.From)
	for _, f := range saleFormats {
		if !f.sender.MatchString(from) && !f.subject.MatchString(m.Subject) {
			continue
		}
		tm := f.title.FindStringSubmatch(m.Body)
		if tm == nil {
			continue
		}
		sale := records.SaleEvent{Platform: f.platform, Title: strings.TrimSpace(tm[1])}
		if pm := f.price.FindStringSubmatch(m.Body); pm != nil {
			sale.Price = Amount(pm[1])
		}
		if sm := f.sku.FindStringSubmatch(m.Body); sm != nil {
			sale.SKU = sm[1]
		}
		return sale, true
	}
	return genericSale(m)
}

func genericSale(m mailbox.Message) (records.Record, bool) {
	pm := genericPlatform.FindStringSubmatch(m.Body)
	if pm == nil {
		return nil, false
	}
	platform, ok := records.ParsePlatform(pm[1])
	if !ok {
		return nil, false
	}
	tm := genericTitle.FindStringSubmatch(m.Body)
	if tm == nil {
		return nil, false
	}
	sale := records.SaleEvent{Platform: platform, Title: strings.TrimSpace(tm[1])}
	if prm := genericPrice.FindStringSubmatch(m.Body); prm != nil {
		sale.Price = Amount(prm[1])
	}
	if sm := genericSKU.FindStringSubmatch(m.Body); sm != nil {
		sale.SKU = sm[1]
	}
	return sale, true
}
