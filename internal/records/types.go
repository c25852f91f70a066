// Package records defines the typed records the parsers emit and the writers
// that apply them to the tabular store.
package records

import "time"

// Platform identifies a marketplace. Matching is case-sensitive against the
// fixed enum; notification formats are keyed by it.
type Platform string

const (
	PlatformVinted    Platform = "Vinted"
	PlatformVestiaire Platform = "Vestiaire"
	PlatformEBay      Platform = "eBay"
	PlatformLeboncoin Platform = "Leboncoin"
	PlatformWhatnot   Platform = "Whatnot"
)

// Platforms lists the supported marketplaces in a stable order.
func Platforms() []Platform {
	return []Platform{
		PlatformVinted,
		PlatformVestiaire,
		PlatformEBay,
		PlatformLeboncoin,
		PlatformWhatnot,
	}
}

// ParsePlatform matches s against the enum, case-sensitively.
func ParsePlatform(s string) (Platform, bool) {
	for _, p := range Platforms() {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Record is the union of everything a parser can produce.
type Record interface {
	// Kind names the record category for logs.
	Kind() string
}

// StockItem is a new or partial stock listing. Absent fields leave existing
// cell values untouched on upsert; SKU matching is case-insensitive.
type StockItem struct {
	SKU       string
	Title     string
	Photos    []string
	Category  string
	Brand     string
	Size      string
	Condition string
	Platform  string
}

func (StockItem) Kind() string { return "stock" }

// SaleEvent is a confirmed sale on one of the marketplaces. The commission is
// looked up by platform at write time.
type SaleEvent struct {
	Platform Platform
	Title    string
	Price    float64
	SKU      string
}

func (SaleEvent) Kind() string { return "sale" }

// PurchaseEvent is sourcing: an item bought from a supplier.
type PurchaseEvent struct {
	Date     time.Time
	Supplier string
	Price    float64
	Brand    string
	Size     string
}

func (PurchaseEvent) Kind() string { return "purchase" }

// EngagementKind distinguishes the two counter columns.
type EngagementKind string

const (
	EngagementFavorite EngagementKind = "favorite"
	EngagementOffer    EngagementKind = "offer"
)

// EngagementEvent bumps the favorite or offer counter of a stock row.
type EngagementEvent struct {
	SKU    string
	Action EngagementKind
}

func (EngagementEvent) Kind() string { return "engagement" }

// Commission is the marketplace cut configured per platform.
type Commission struct {
	Percent float64
	FlatFee float64
}

// CommissionSource resolves the configured commission of a platform. An
// unconfigured platform yields the zero commission.
type CommissionSource interface {
	CommissionFor(p Platform) Commission
}
