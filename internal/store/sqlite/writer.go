// Package sqlite persists bars, signals, and decisions in a local
// SQLite database. One writer goroutine owns the connection; bar
// inserts are batched into transactions to keep WAL commits off the
// hot path.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // e.g. "data/bars.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db    *sql.DB
	frame int

	// OnCommit is an optional metrics hook fired per successful batch.
	OnCommit func(d time.Duration)
}

// DB returns the underlying sql.DB for health checks and readers.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and ensures the schema.
func New(cfg WriterConfig, frameSeconds int) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer owns the connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db, frame: frameSeconds}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			instrument TEXT    NOT NULL,
			frame      INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			open       TEXT    NOT NULL,
			high       TEXT    NOT NULL,
			low        TEXT    NOT NULL,
			close      TEXT    NOT NULL,
			volume     INTEGER,
			PRIMARY KEY (instrument, frame, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			id         TEXT    PRIMARY KEY,
			instrument TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			side       TEXT    NOT NULL,
			entry      TEXT    NOT NULL,
			sl         TEXT    NOT NULL,
			tp         TEXT    NOT NULL,
			size       TEXT    NOT NULL,
			r          REAL    NOT NULL,
			strategy   TEXT,
			reason     TEXT
		);

		CREATE TABLE IF NOT EXISTS decision_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id  TEXT    NOT NULL,
			decision   TEXT    NOT NULL,
			score_pct  INTEGER NOT NULL,
			result     TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_decision_log_signal ON decision_log (signal_id);
	`)
	return err
}

// Run reads closed bars from barCh and inserts them in batched
// transactions: every batchSize bars or every flushDelay, whichever
// comes first. Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	batch := make([]model.Bar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d bars in %v", len(batch), time.Since(start))
			if w.OnCommit != nil {
				w.OnCommit(time.Since(start))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case bar, ok := <-barCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, bar)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertBatch(bars []model.Bar) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (instrument, frame, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.Exec(
			b.Instrument, w.frame, b.Time,
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(),
			b.Volume,
		)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// SaveSignal stores one candidate signal. Duplicate ids are replaced.
func (w *Writer) SaveSignal(sig *model.Signal) error {
	_, err := w.db.Exec(`
		INSERT OR REPLACE INTO signals (id, instrument, ts, side, entry, sl, tp, size, r, strategy, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sig.ID, sig.Instrument, sig.TS, string(sig.Side),
		sig.Entry.String(), sig.Stop.String(), sig.Take.String(), sig.Size.String(),
		sig.R, sig.Strategy, sig.Reason,
	)
	if err != nil {
		return fmt.Errorf("sqlite save signal %s: %w", sig.ID, err)
	}
	return nil
}

// SaveDecision appends one evaluation outcome to the decision log. The
// full result is stored as JSON for audit.
func (w *Writer) SaveDecision(signalID string, res *model.DecisionResult) error {
	_, err := w.db.Exec(`
		INSERT INTO decision_log (signal_id, decision, score_pct, result)
		VALUES (?, ?, ?, ?)
	`, signalID, string(res.Decision), res.ScorePct, string(res.JSON()))
	if err != nil {
		return fmt.Errorf("sqlite save decision for %s: %w", signalID, err)
	}
	return nil
}

// LastBarTime returns the newest stored bar timestamp for an
// instrument, or 0 when none exist.
func (w *Writer) LastBarTime(instrument string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM bars WHERE instrument = ? AND frame = ?`,
		instrument, w.frame,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
