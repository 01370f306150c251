package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jayana-cpc/wealthwise/internal/database"
)

const barSchema = `
CREATE TABLE IF NOT EXISTS price_bars (
	symbol    TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	bar_time  TIMESTAMP NOT NULL,
	open      REAL NOT NULL,
	high      REAL NOT NULL,
	low       REAL NOT NULL,
	close     REAL NOT NULL,
	volume    INTEGER,
	source    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (symbol, timeframe, bar_time)
);
CREATE INDEX IF NOT EXISTS idx_price_bars_window ON price_bars (timeframe, bar_time);
`

// SQLiteBarStore persists daily price bars in the local cache database.
// It implements BarStore.
type SQLiteBarStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteBarStore creates the bar store and ensures its schema exists.
func NewSQLiteBarStore(db *database.DB, log zerolog.Logger) (*SQLiteBarStore, error) {
	conn := db.Conn()
	if _, err := conn.Exec(barSchema); err != nil {
		return nil, fmt.Errorf("failed to create price_bars schema: %w", err)
	}
	return &SQLiteBarStore{
		db:  conn,
		log: log.With().Str("component", "bar_store").Logger(),
	}, nil
}

// GetBars loads cached bars for the symbols within [start, end], ascending
// by time, grouped per symbol.
func (s *SQLiteBarStore) GetBars(ctx context.Context, symbols []string, start, end time.Time, timeframe string) (map[string][]Bar, error) {
	if len(symbols) == 0 {
		return map[string][]Bar{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(symbols)), ",")
	query := fmt.Sprintf(`
		SELECT symbol, timeframe, bar_time, open, high, low, close, volume, source
		FROM price_bars
		WHERE timeframe = ? AND bar_time >= ? AND bar_time <= ? AND symbol IN (%s)
		ORDER BY symbol, bar_time`, placeholders)

	args := make([]any, 0, len(symbols)+3)
	args = append(args, timeframe, start.UTC(), end.UTC())
	for _, sym := range symbols {
		args = append(args, sym)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached bars: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]Bar)
	for rows.Next() {
		var bar Bar
		var volume sql.NullInt64
		if err := rows.Scan(&bar.Symbol, &bar.Timeframe, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &volume, &bar.Source); err != nil {
			return nil, fmt.Errorf("failed to scan cached bar: %w", err)
		}
		if volume.Valid {
			v := volume.Int64
			bar.Volume = &v
		}
		bar.Time = bar.Time.UTC()
		result[bar.Symbol] = append(result[bar.Symbol], bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cached bars: %w", err)
	}
	return result, nil
}

// PutBars upserts bars in one transaction. Later writes win on
// (symbol, timeframe, bar_time) conflicts.
func (s *SQLiteBarStore) PutBars(ctx context.Context, bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bar upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_bars (symbol, timeframe, bar_time, open, high, low, close, volume, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timeframe, bar_time) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			source = excluded.source`)
	if err != nil {
		return fmt.Errorf("failed to prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		var volume any
		if bar.Volume != nil {
			volume = *bar.Volume
		}
		if _, err := stmt.ExecContext(ctx, bar.Symbol, bar.Timeframe, bar.Time.UTC(), bar.Open, bar.High, bar.Low, bar.Close, volume, bar.Source); err != nil {
			return fmt.Errorf("failed to upsert bar for %s: %w", bar.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bar upsert: %w", err)
	}

	s.log.Debug().Int("bars", len(bars)).Msg("Persisted price bars")
	return nil
}
