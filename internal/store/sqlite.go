package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"signalist/internal/model"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists alert records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite alert store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_alerts (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			symbol           TEXT NOT NULL,
			company          TEXT NOT NULL,
			direction        TEXT NOT NULL CHECK (direction IN ('above','below')),
			target_price     TEXT NOT NULL,
			last_known_price TEXT NOT NULL,
			is_active        INTEGER NOT NULL DEFAULT 1,
			is_triggered     INTEGER NOT NULL DEFAULT 0,
			triggered_at     INTEGER,
			method           TEXT NOT NULL DEFAULT 'email',
			created_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON price_alerts(user_id, symbol, direction, target_price)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_state ON price_alerts(is_active, is_triggered)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

const alertColumns = `id, user_id, symbol, company, direction, target_price, last_known_price,
	is_active, is_triggered, triggered_at, method, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (model.AlertRecord, error) {
	var (
		a           model.AlertRecord
		direction   string
		method      string
		triggeredAt sql.NullInt64
		createdAt   int64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Symbol, &a.Company, &direction,
		&a.TargetPrice, &a.LastKnownPrice, &a.IsActive, &a.IsTriggered,
		&triggeredAt, &method, &createdAt)
	if err != nil {
		return model.AlertRecord{}, err
	}
	a.Direction = model.AlertDirection(direction)
	a.Method = model.NotificationMethod(method)
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	if triggeredAt.Valid {
		t := time.Unix(0, triggeredAt.Int64).UTC()
		a.TriggeredAt = &t
	}
	return a, nil
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w: %w", model.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var out []model.AlertRecord
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w: %w", model.ErrPersistenceFailure, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w: %w", model.ErrPersistenceFailure, err)
	}
	return out, nil
}

func (s *SQLiteStore) ListActiveAlerts(ctx context.Context) ([]model.AlertRecord, error) {
	return s.query(ctx, `SELECT `+alertColumns+` FROM price_alerts
		WHERE is_active = 1 AND is_triggered = 0 ORDER BY created_at`)
}

func (s *SQLiteStore) CompareAndMarkTriggered(ctx context.Context, id string, expectedTriggered bool, price decimal.Decimal, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE price_alerts
		SET is_triggered = 1, triggered_at = ?, last_known_price = ?
		WHERE id = ? AND is_triggered = ? AND is_active = 1`,
		at.UnixNano(), price, id, expectedTriggered)
	if err != nil {
		return false, fmt.Errorf("mark triggered %s: %w: %w", id, model.ErrPersistenceFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark triggered %s: %w: %w", id, model.ErrPersistenceFailure, err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) UpdateLastKnownPrice(ctx context.Context, id string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE price_alerts SET last_known_price = ?
		WHERE id = ? AND is_triggered = 0`, price, id)
	if err != nil {
		return fmt.Errorf("update price %s: %w: %w", id, model.ErrPersistenceFailure, err)
	}
	return nil
}

func (s *SQLiteStore) CreateAlert(ctx context.Context, a model.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var triggeredAt sql.NullInt64
	if a.TriggeredAt != nil {
		triggeredAt = sql.NullInt64{Int64: a.TriggeredAt.UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO price_alerts (`+alertColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.UserID, a.Symbol, a.Company, string(a.Direction),
		a.TargetPrice, a.LastKnownPrice, a.IsActive, a.IsTriggered,
		triggeredAt, string(a.Method), a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w: %w", model.ErrPersistenceFailure, err)
	}
	return nil
}

func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (model.AlertRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM price_alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AlertRecord{}, fmt.Errorf("alert %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.AlertRecord{}, fmt.Errorf("get alert %s: %w: %w", id, model.ErrPersistenceFailure, err)
	}
	return a, nil
}

func (s *SQLiteStore) ListUserAlerts(ctx context.Context, userID string, activeOnly bool) ([]model.AlertRecord, error) {
	q := `SELECT ` + alertColumns + ` FROM price_alerts WHERE user_id = ?`
	if activeOnly {
		q += ` AND is_active = 1 AND is_triggered = 0`
	}
	return s.query(ctx, q+` ORDER BY created_at DESC`, userID)
}

func (s *SQLiteStore) ToggleActive(ctx context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active bool
	err := s.db.QueryRowContext(ctx, `UPDATE price_alerts SET is_active = 1 - is_active
		WHERE id = ? AND user_id = ? RETURNING is_active`, id, userID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("alert %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("toggle alert %s: %w: %w", id, model.ErrPersistenceFailure, err)
	}
	return active, nil
}

func (s *SQLiteStore) DeleteAlert(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM price_alerts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete alert %s: %w: %w", id, model.ErrPersistenceFailure, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite alert store")
	return s.db.Close()
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
