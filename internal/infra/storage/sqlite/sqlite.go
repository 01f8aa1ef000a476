// Package sqlite is a single-node occurrence sink on an embedded SQLite file.
package sqlite

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/vietddude/faultline/internal/core/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultListLimit = 50

// Config holds SQLite settings.
type Config struct {
	Path string `yaml:"path"`
}

// Store implements storage.OccurrenceRepository on SQLite. Times are stored
// as unix milliseconds so range deletes compare numerically.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at cfg.Path and migrates it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := cfg.Path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type occurrenceRow struct {
	ID            string `db:"id"`
	Fingerprint   string `db:"fingerprint"`
	ErrorID       string `db:"error_id"`
	Group         string `db:"error_group"`
	Severity      string `db:"severity"`
	TenantID      string `db:"tenant_id"`
	CorrelationID string `db:"correlation_id"`
	Context       string `db:"redacted_context"`
	CreatedAt     int64  `db:"created_at"`
	ExpiresAt     int64  `db:"expires_at"`
}

func (r *occurrenceRow) toDomain() (domain.Occurrence, error) {
	occ := domain.Occurrence{
		ID:            r.ID,
		Fingerprint:   r.Fingerprint,
		ErrorID:       r.ErrorID,
		Group:         domain.Group(r.Group),
		Severity:      domain.Severity(r.Severity),
		TenantID:      r.TenantID,
		CorrelationID: r.CorrelationID,
		CreatedAt:     time.UnixMilli(r.CreatedAt).UTC(),
		ExpiresAt:     time.UnixMilli(r.ExpiresAt).UTC(),
	}
	if err := json.Unmarshal([]byte(r.Context), &occ.RedactedContext); err != nil {
		return occ, fmt.Errorf("failed to decode context of %s: %w", r.ID, err)
	}
	return occ, nil
}

// Append persists one occurrence.
func (s *Store) Append(ctx context.Context, occ domain.Occurrence) error {
	payload := []byte("{}")
	if occ.RedactedContext != nil {
		var err error
		if payload, err = json.Marshal(occ.RedactedContext); err != nil {
			return fmt.Errorf("failed to encode occurrence context: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO occurrences (id, fingerprint, error_id, error_group, severity, tenant_id,
			correlation_id, redacted_context, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		occ.ID,
		occ.Fingerprint,
		occ.ErrorID,
		string(occ.Group),
		string(occ.Severity),
		occ.TenantID,
		occ.CorrelationID,
		string(payload),
		occ.CreatedAt.UnixMilli(),
		occ.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to append occurrence: %w", err)
	}
	return nil
}

// List returns the most recent occurrences matching filter, newest first.
func (s *Store) List(ctx context.Context, filter domain.OccurrenceFilter) ([]domain.Occurrence, error) {
	var (
		where []string
		args  []any
	)
	for column, value := range map[string]string{
		"fingerprint": filter.Fingerprint,
		"error_id":    filter.ErrorID,
		"tenant_id":   filter.TenantID,
	} {
		if value != "" {
			where = append(where, column+" = ?")
			args = append(args, value)
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT * FROM occurrences`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	var rows []occurrenceRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}

	out := make([]domain.Occurrence, 0, len(rows))
	for i := range rows {
		occ, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, occ)
	}
	return out, nil
}

// DeleteExpired removes occurrences whose retention ended before t.
func (s *Store) DeleteExpired(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM occurrences WHERE expires_at < ?`, t.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired occurrences: %w", err)
	}
	return res.RowsAffected()
}

// Health checks the database.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
