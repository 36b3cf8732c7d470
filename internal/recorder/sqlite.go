package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pattern_scans (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			kind             TEXT NOT NULL,
			symbol           TEXT NOT NULL,
			match_count      INTEGER,
			bullish          INTEGER,
			bearish          INTEGER,
			neutral          INTEGER,
			sentiment        TEXT,
			confidence       REAL,
			error            TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_ts ON pattern_scans(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_symbol ON pattern_scans(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS pattern_detections (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id      INTEGER NOT NULL REFERENCES pattern_scans(id),
			name         TEXT NOT NULL,
			direction    TEXT NOT NULL,
			confidence   REAL NOT NULL,
			significance TEXT NOT NULL,
			action       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_scan ON pattern_detections(scan_id)`,

		`CREATE TABLE IF NOT EXISTS alert_triggers (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			alert_id     TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			symbol       TEXT NOT NULL,
			direction    TEXT NOT NULL,
			target_price TEXT NOT NULL,
			price        TEXT NOT NULL,
			notified     INTEGER NOT NULL,
			notify_error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_ts ON alert_triggers(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordScan(evt *ScanEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	s := evt.Summary
	res, err := tx.Exec(`INSERT INTO pattern_scans
		(timestamp, kind, symbol, match_count, bullish, bearish, neutral, sentiment, confidence, error)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), evt.Kind, evt.Symbol, len(evt.Matches),
		s.Bullish, s.Bearish, s.Neutral, string(s.Sentiment), s.Confidence, evt.Error,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scan id: %w", err)
	}
	for _, m := range evt.Matches {
		if _, err := tx.Exec(`INSERT INTO pattern_detections
			(scan_id, name, direction, confidence, significance, action)
			VALUES (?,?,?,?,?,?)`,
			scanID, m.Name, string(m.Direction), m.Confidence, string(m.Significance), string(m.Action),
		); err != nil {
			return fmt.Errorf("insert detection: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordTrigger(evt *TriggerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO alert_triggers
		(timestamp, alert_id, user_id, symbol, direction, target_price, price, notified, notify_error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), evt.AlertID, evt.UserID, evt.Symbol, string(evt.Direction),
		evt.TargetPrice.String(), evt.Price.String(), evt.Notified, evt.NotifyError,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

// dsn applies the pragmas on every pooled connection, not just the first.
// WAL lets readers proceed while the scheduler writes.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
