package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// Reader loads persisted bars for warm-starting instrument workers.
type Reader struct {
	db    *sql.DB
	frame int
}

// NewReader wraps an open database for backfill queries.
func NewReader(db *sql.DB, frameSeconds int) *Reader {
	return &Reader{db: db, frame: frameSeconds}
}

// RecentBars returns up to limit newest complete bars for an
// instrument, oldest first, ready to seed a history buffer.
func (r *Reader) RecentBars(instrument string, limit int) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE instrument = ? AND frame = ?
		ORDER BY ts DESC
		LIMIT ?
	`, instrument, r.frame, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite recent bars for %s: %w", instrument, err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var (
			ts                     int64
			open, high, low, close string
			volume                 sql.NullInt64
		)
		if err := rows.Scan(&ts, &open, &high, &low, &close, &volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bar: %w", err)
		}

		bar, err := decodeBar(instrument, ts, open, high, low, close, volume.Int64)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite recent bars for %s: %w", instrument, err)
	}

	// Newest-first query, oldest-first contract.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func decodeBar(instrument string, ts int64, open, high, low, close string, volume int64) (model.Bar, error) {
	o, err := decimal.NewFromString(open)
	if err != nil {
		return model.Bar{}, fmt.Errorf("sqlite bar %s@%d open: %w", instrument, ts, err)
	}
	h, err := decimal.NewFromString(high)
	if err != nil {
		return model.Bar{}, fmt.Errorf("sqlite bar %s@%d high: %w", instrument, ts, err)
	}
	l, err := decimal.NewFromString(low)
	if err != nil {
		return model.Bar{}, fmt.Errorf("sqlite bar %s@%d low: %w", instrument, ts, err)
	}
	c, err := decimal.NewFromString(close)
	if err != nil {
		return model.Bar{}, fmt.Errorf("sqlite bar %s@%d close: %w", instrument, ts, err)
	}

	return model.Bar{
		Instrument: instrument,
		Time:       ts,
		Open:       o,
		High:       h,
		Low:        l,
		Close:      c,
		Volume:     volume,
		Complete:   true,
	}, nil
}
