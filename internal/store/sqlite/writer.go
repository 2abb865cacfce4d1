package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"fx-confluence/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
}

// Writer stores bar history. One connection; batches go in a single
// transaction.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			instrument TEXT    NOT NULL,
			interval   TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL,
			PRIMARY KEY (instrument, interval, ts)
		);
	`)
	return err
}

func normInstrument(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// WriteBars upserts bars for instrument/interval in one transaction and
// returns how many rows were written. Bars without volume store NULL.
func (w *Writer) WriteBars(ctx context.Context, instrument string, iv model.Interval, bars []model.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	start := time.Now()
	inst := normInstrument(instrument)

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (instrument, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		var vol sql.NullFloat64
		if b.Volume != nil {
			vol = sql.NullFloat64{Float64: *b.Volume, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, inst, string(iv), b.TS.Unix(), b.Open, b.High, b.Low, b.Close, vol); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("sqlite insert %s %s @%d: %w", inst, iv, b.TS.Unix(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite commit: %w", err)
	}
	log.Printf("[sqlite] committed %d %s %s bars in %v", len(bars), inst, iv, time.Since(start))
	return len(bars), nil
}

// LastTimestamp returns the newest stored bar time for instrument/interval.
// ok is false if none exist.
func (w *Writer) LastTimestamp(ctx context.Context, instrument string, iv model.Interval) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM bars WHERE instrument = ? AND interval = ?`,
		normInstrument(instrument), string(iv),
	).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), true, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
