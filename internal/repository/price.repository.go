package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"rotation/internal/domain"
	"rotation/internal/util"
)

// freshnessWindow tolerates weekends and late provider publishing: a
// cached symbol whose last stored date is within this many calendar
// days of the requested end does not need a refetch.
const freshnessWindow = 2

const schema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	symbol TEXT NOT NULL,
	date   TEXT NOT NULL,
	close  REAL NOT NULL,
	PRIMARY KEY (symbol, date)
);
CREATE TABLE IF NOT EXISTS symbol_meta (
	symbol     TEXT PRIMARY KEY,
	first_date TEXT,
	last_date  TEXT,
	updated_at TEXT
);
`

type PriceRepository interface {
	GetSeries(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error)
	UpsertBars(ctx context.Context, bars []domain.Bar) error
	Meta(ctx context.Context, symbol string) (*SymbolMeta, error)
	IsFresh(ctx context.Context, symbol string, end time.Time) (bool, error)
	Close() error
}

type SymbolMeta struct {
	Symbol    string `db:"symbol"`
	FirstDate string `db:"first_date"`
	LastDate  string `db:"last_date"`
	UpdatedAt string `db:"updated_at"`
}

type priceRow struct {
	Symbol string  `db:"symbol"`
	Date   string  `db:"date"`
	Close  float64 `db:"close"`
}

type priceRepositoryHandler struct {
	db *sqlx.DB
}

// NewPriceRepository opens (or creates) the SQLite price cache at
// path and ensures the schema exists.
func NewPriceRepository(path string) (PriceRepository, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price cache %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize price cache schema: %w", err)
	}
	return &priceRepositoryHandler{db: db}, nil
}

func (h *priceRepositoryHandler) Close() error {
	return h.db.Close()
}

func (h *priceRepositoryHandler) GetSeries(ctx context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	rows := []priceRow{}
	err := h.db.SelectContext(ctx, &rows, `
		SELECT symbol, date, close FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`,
		symbol, util.FormatDate(start), util.FormatDate(end),
	)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("failed to load cached prices for %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, row := range rows {
		date, err := util.ParseDate(row.Date)
		if err != nil {
			return domain.PriceSeries{}, fmt.Errorf("corrupt date %q cached for %s: %w", row.Date, symbol, err)
		}
		bars = append(bars, domain.Bar{Symbol: row.Symbol, Date: date, Close: row.Close})
	}
	return domain.NewPriceSeries(symbol, bars), nil
}

// UpsertBars writes bars transactionally and refreshes symbol_meta
// so freshness checks stay consistent with the stored rows.
func (h *priceRepositoryHandler) UpsertBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin price cache tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_prices (symbol, date, close)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare price upsert: %w", err)
	}
	defer stmt.Close()

	touched := map[string]struct{}{}
	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx, bar.Symbol, util.FormatDate(bar.Date), bar.Close); err != nil {
			return fmt.Errorf("failed to upsert price %s %s: %w", bar.Symbol, util.FormatDate(bar.Date), err)
		}
		touched[bar.Symbol] = struct{}{}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for symbol := range touched {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO symbol_meta (symbol, first_date, last_date, updated_at)
			VALUES (
				?,
				(SELECT MIN(date) FROM daily_prices WHERE symbol = ?),
				(SELECT MAX(date) FROM daily_prices WHERE symbol = ?),
				?
			)`,
			symbol, symbol, symbol, now,
		)
		if err != nil {
			return fmt.Errorf("failed to update meta for %s: %w", symbol, err)
		}
	}

	return tx.Commit()
}

func (h *priceRepositoryHandler) Meta(ctx context.Context, symbol string) (*SymbolMeta, error) {
	meta := SymbolMeta{}
	err := h.db.GetContext(ctx, &meta, `
		SELECT symbol, first_date, last_date, updated_at
		FROM symbol_meta WHERE symbol = ?`, symbol)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meta for %s: %w", symbol, err)
	}
	return &meta, nil
}

// IsFresh reports whether the cached range for symbol already covers
// the requested end within the freshness window, so the caller can
// skip the remote fetch entirely.
func (h *priceRepositoryHandler) IsFresh(ctx context.Context, symbol string, end time.Time) (bool, error) {
	meta, err := h.Meta(ctx, symbol)
	if err != nil {
		return false, err
	}
	if meta == nil || meta.LastDate == "" {
		return false, nil
	}
	lastDate, err := util.ParseDate(meta.LastDate)
	if err != nil {
		return false, fmt.Errorf("corrupt last_date %q for %s: %w", meta.LastDate, symbol, err)
	}
	return !lastDate.Before(end.AddDate(0, 0, -freshnessWindow)), nil
}
