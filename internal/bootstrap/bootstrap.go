// Package bootstrap assembles the dashboard snapshot: headline KPIs plus the
// most recent activity, built from the tabular store and cached in the KV
// store so the dashboard renders without touching the backend.
package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/threadstock/threadstock/internal/kpi"
	"github.com/threadstock/threadstock/internal/records"
	"github.com/threadstock/threadstock/internal/state"
	"github.com/threadstock/threadstock/internal/tabular"
)

// CacheKey is where the last built payload lives in the KV store.
const CacheKey = "BOOTSTRAP"

// recentRows caps the activity sections of the payload.
const recentRows = 10

// Payload is the snapshot served to the dashboard.
type Payload struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Stock       StockSummary `json:"stock"`
	Sales       SalesSummary `json:"sales"`
	RecentSales [][]string   `json:"recent_sales"`
	RecentLogs  [][]string   `json:"recent_logs"`
}

// StockSummary counts listed items.
type StockSummary struct {
	Items int `json:"items"`
}

// SalesSummary aggregates the sales sheet. Money is rounded to cents.
type SalesSummary struct {
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
	Fees    float64 `json:"fees"`
}

// Builder reads the tabular store and produces payloads.
type Builder struct {
	Store  tabular.Store
	Sheets records.Sheets
	Clock  func() time.Time
}

func NewBuilder(store tabular.Store, sheets records.Sheets) *Builder {
	return &Builder{Store: store, Sheets: sheets, Clock: time.Now}
}

// Build assembles a fresh payload. A missing sheet contributes an empty
// section rather than failing the whole snapshot.
func (b *Builder) Build(ctx context.Context) (Payload, error) {
	p := Payload{GeneratedAt: b.Clock()}

	stock, err := b.rows(ctx, b.Sheets.Stock)
	if err != nil {
		return Payload{}, err
	}
	p.Stock.Items = dataRowCount(stock)

	sales, err := b.rows(ctx, b.Sheets.Sales)
	if err != nil {
		return Payload{}, err
	}
	p.Sales = summarizeSales(sales)
	p.RecentSales = tail(sales, recentRows)

	logs, err := b.rows(ctx, b.Sheets.Logs)
	if err != nil {
		return Payload{}, err
	}
	p.RecentLogs = tail(logs, recentRows)

	return p, nil
}

// Refresh builds a payload and caches it.
func (b *Builder) Refresh(ctx context.Context, kv state.KV) (Payload, error) {
	p, err := b.Build(ctx)
	if err != nil {
		return Payload{}, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Payload{}, fmt.Errorf("encode payload: %w", err)
	}
	if err := kv.Put(ctx, CacheKey, raw); err != nil {
		return Payload{}, fmt.Errorf("cache payload: %w", err)
	}
	return p, nil
}

// Cached returns the last cached payload, if any.
func Cached(ctx context.Context, kv state.KV) (Payload, bool, error) {
	raw, ok, err := kv.Get(ctx, CacheKey)
	if err != nil || !ok {
		return Payload{}, false, err
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, false, fmt.Errorf("decode cached payload: %w", err)
	}
	return p, true, nil
}

func (b *Builder) rows(ctx context.Context, sheet string) ([][]string, error) {
	rows, err := b.Store.Rows(ctx, sheet)
	if errors.Is(err, tabular.ErrSheetMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func dataRowCount(rows [][]string) int {
	if len(rows) <= 1 {
		return 0
	}
	return len(rows) - 1
}

func summarizeSales(rows [][]string) SalesSummary {
	var s SalesSummary
	if len(rows) == 0 {
		return s
	}
	priceCol := headerIndex(rows[0], "Price")
	feeCol := headerIndex(rows[0], "Fee")
	for _, row := range rows[1:] {
		s.Count++
		s.Revenue += cellAmount(row, priceCol)
		s.Fees += cellAmount(row, feeCol)
	}
	s.Revenue = kpi.Round2(s.Revenue)
	s.Fees = kpi.Round2(s.Fees)
	return s
}

func headerIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// cellAmount reads a money cell leniently; anything unreadable counts as zero.
func cellAmount(row []string, col int) float64 {
	if col < 0 || col >= len(row) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	if err != nil {
		return 0
	}
	return v
}

// tail returns the last n data rows, newest last, header excluded.
func tail(rows [][]string, n int) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	data := rows[1:]
	if len(data) > n {
		data = data[len(data)-n:]
	}
	out := make([][]string, len(data))
	for i, row := range data {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// WriteJSON serializes a payload to a file under the working directory.
func WriteJSON(p Payload, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	abs := filepath.Join(wd, clean)
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(p); encodeErr != nil {
		return fmt.Errorf("encode payload: %w", encodeErr)
	}
	return nil
}
