package tabular

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores sheets as (sheet, row index, cells[]) tuples. It exists for
// running the pipeline without a Google Sheets backend; the contract is the
// same, including the 1-based header-row convention.
type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS sheet_rows (
		sheet TEXT NOT NULL,
		idx   INT  NOT NULL,
		cells TEXT[] NOT NULL,
		PRIMARY KEY (sheet, idx)
	)`)
	if err != nil {
		return fmt.Errorf("migrate sheet_rows: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSheet creates the header row when the sheet does not exist yet.
func (p *Postgres) EnsureSheet(ctx context.Context, sheet string, header []string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sheet_rows (sheet, idx, cells) VALUES ($1, 1, $2)
		ON CONFLICT (sheet, idx) DO NOTHING
	`, sheet, header)
	if err != nil {
		return fmt.Errorf("ensure sheet %s: %w", sheet, err)
	}
	return nil
}

func (p *Postgres) Rows(ctx context.Context, sheet string) ([][]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT idx, cells FROM sheet_rows WHERE sheet = $1 ORDER BY idx`, sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var idx int
		var cells []string
		if err := rows.Scan(&idx, &cells); err != nil {
			return nil, fmt.Errorf("scan sheet %s: %w", sheet, err)
		}
		for len(out) < idx-1 {
			out = append(out, nil)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheet %s: %w", sheet, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSheetMissing, sheet)
	}
	return out, nil
}

func (p *Postgres) SetRows(ctx context.Context, sheet string, startRow int, rowValues [][]string) error {
	if startRow < 1 {
		return fmt.Errorf("start row %d out of range", startRow)
	}
	batch := &pgx.Batch{}
	for i, cells := range rowValues {
		batch.Queue(`
			INSERT INTO sheet_rows (sheet, idx, cells) VALUES ($1, $2, $3)
			ON CONFLICT (sheet, idx) DO UPDATE SET cells = excluded.cells
		`, sheet, startRow+i, cells)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write sheet %s: %w", sheet, err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, sheet string, rowValues [][]string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("append sheet %s: %w", sheet, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(idx), 0) + 1 FROM sheet_rows WHERE sheet = $1`, sheet).Scan(&next)
	if err != nil {
		return fmt.Errorf("append sheet %s: %w", sheet, err)
	}
	if next == 1 {
		return fmt.Errorf("%w: %s", ErrSheetMissing, sheet)
	}
	for i, cells := range rowValues {
		if _, err := tx.Exec(ctx,
			`INSERT INTO sheet_rows (sheet, idx, cells) VALUES ($1, $2, $3)`,
			sheet, next+i, cells); err != nil {
			return fmt.Errorf("append sheet %s: %w", sheet, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("append sheet %s: %w", sheet, err)
	}
	return nil
}

func (p *Postgres) SetCell(ctx context.Context, sheet string, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("cell %d,%d out of range", row, col)
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set cell %s!%d,%d: %w", sheet, row, col, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cells []string
	err = tx.QueryRow(ctx,
		`SELECT cells FROM sheet_rows WHERE sheet = $1 AND idx = $2 FOR UPDATE`,
		sheet, row).Scan(&cells)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("set cell %s!%d,%d: %w", sheet, row, col, err)
	}
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	if _, err := tx.Exec(ctx, `
		INSERT INTO sheet_rows (sheet, idx, cells) VALUES ($1, $2, $3)
		ON CONFLICT (sheet, idx) DO UPDATE SET cells = excluded.cells
	`, sheet, row, cells); err != nil {
		return fmt.Errorf("set cell %s!%d,%d: %w", sheet, row, col, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("set cell %s!%d,%d: %w", sheet, row, col, err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)
