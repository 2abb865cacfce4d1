package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"fx-confluence/internal/model"
)

// Reader provides read access to stored bar history.
type Reader struct {
	db *sqlx.DB
}

// barRow is one row of the bars table as selected by ReadBars.
type barRow struct {
	TS     int64           `db:"ts"`
	Open   float64         `db:"open"`
	High   float64         `db:"high"`
	Low    float64         `db:"low"`
	Close  float64         `db:"close"`
	Volume sql.NullFloat64 `db:"volume"`
}

func (r barRow) bar() model.Bar {
	b := model.Bar{
		TS:   time.Unix(r.TS, 0).UTC(),
		Open: r.Open, High: r.High, Low: r.Low, Close: r.Close,
	}
	if r.Volume.Valid {
		b.Volume = model.Vol(r.Volume.Float64)
	}
	return b
}

// NewReader opens a SQLite connection for reading. The schema is created
// if missing so a fresh database reads as empty rather than failing.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sqlx.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if err := createSchema(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db.DB }

// ReadBars returns bars for instrument/interval with ts >= from, ordered by
// timestamp ascending. A zero from reads everything.
func (r *Reader) ReadBars(ctx context.Context, instrument string, iv model.Interval, from time.Time) (model.Series, error) {
	inst := normInstrument(instrument)
	var fromTS int64
	if !from.IsZero() {
		fromTS = from.Unix()
	}

	var rows []barRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE instrument = ? AND interval = ? AND ts >= ?
		ORDER BY ts ASC
	`, inst, string(iv), fromTS)
	if err != nil {
		return model.Series{}, fmt.Errorf("sqlite query bars: %w", err)
	}

	s := model.Series{Instrument: inst, Interval: iv, Bars: make([]model.Bar, len(rows))}
	for i, row := range rows {
		s.Bars[i] = row.bar()
	}
	return s, nil
}

// Instruments lists the instruments with bars stored for iv.
func (r *Reader) Instruments(ctx context.Context, iv model.Interval) ([]string, error) {
	var out []string
	err := r.db.SelectContext(ctx, &out,
		`SELECT DISTINCT instrument FROM bars WHERE interval = ? ORDER BY instrument`, string(iv))
	if err != nil {
		return nil, fmt.Errorf("sqlite query instruments: %w", err)
	}
	return out, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
