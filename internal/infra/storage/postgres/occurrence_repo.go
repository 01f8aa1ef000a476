package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

const defaultListLimit = 50

// OccurrenceRepo implements storage.OccurrenceRepository using PostgreSQL.
type OccurrenceRepo struct {
	db *DB
}

// NewOccurrenceRepo creates a new PostgreSQL occurrence repository.
func NewOccurrenceRepo(db *DB) *OccurrenceRepo {
	return &OccurrenceRepo{db: db}
}

type occurrenceRow struct {
	ID            string    `db:"id"`
	Fingerprint   string    `db:"fingerprint"`
	ErrorID       string    `db:"error_id"`
	Group         string    `db:"error_group"`
	Severity      string    `db:"severity"`
	TenantID      string    `db:"tenant_id"`
	CorrelationID string    `db:"correlation_id"`
	Context       string    `db:"redacted_context"`
	CreatedAt     time.Time `db:"created_at"`
	ExpiresAt     time.Time `db:"expires_at"`
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
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
	}
	if r.Context != "" {
		if err := json.Unmarshal([]byte(r.Context), &occ.RedactedContext); err != nil {
			return occ, fmt.Errorf("failed to decode context of %s: %w", r.ID, err)
		}
	}
	return occ, nil
}

const selectColumns = `id, fingerprint, error_id, error_group, severity, tenant_id,
	correlation_id, redacted_context::text AS redacted_context, created_at, expires_at`

// Append persists one occurrence.
func (r *OccurrenceRepo) Append(ctx context.Context, occ domain.Occurrence) error {
	payload, err := json.Marshal(occ.RedactedContext)
	if err != nil {
		return fmt.Errorf("failed to encode occurrence context: %w", err)
	}
	if occ.RedactedContext == nil {
		payload = []byte("{}")
	}

	query := `
		INSERT INTO occurrences (id, fingerprint, error_id, error_group, severity, tenant_id,
			correlation_id, redacted_context, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		occ.ID,
		occ.Fingerprint,
		occ.ErrorID,
		string(occ.Group),
		string(occ.Severity),
		occ.TenantID,
		occ.CorrelationID,
		string(payload),
		occ.CreatedAt.UTC(),
		occ.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append occurrence: %w", err)
	}
	return nil
}

// Get returns one occurrence by id.
func (r *OccurrenceRepo) Get(ctx context.Context, id string) (domain.Occurrence, error) {
	var row occurrenceRow
	err := r.db.GetContext(ctx, &row, `SELECT `+selectColumns+` FROM occurrences WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Occurrence{}, fmt.Errorf("occurrence %s not found: %w", id, err)
		}
		return domain.Occurrence{}, fmt.Errorf("failed to get occurrence: %w", err)
	}
	return row.toDomain()
}

// List returns the most recent occurrences matching filter, newest first.
func (r *OccurrenceRepo) List(ctx context.Context, filter domain.OccurrenceFilter) ([]domain.Occurrence, error) {
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("fingerprint", filter.Fingerprint)
	add("error_id", filter.ErrorID)
	add("tenant_id", filter.TenantID)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	query := `SELECT ` + selectColumns + ` FROM occurrences`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	var rows []occurrenceRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
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
func (r *OccurrenceRepo) DeleteExpired(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM occurrences WHERE expires_at < $1`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired occurrences: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted occurrences: %w", err)
	}
	return n, nil
}

// Health checks the database.
func (r *OccurrenceRepo) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}
