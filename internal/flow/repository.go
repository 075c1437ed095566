package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists drafts between requests.
type Repository interface {
	Get(ctx context.Context, key Key) (*Draft, error)
	// Save inserts or replaces the draft and stamps UpdatedAt.
	Save(ctx context.Context, d *Draft) error
	// Delete is idempotent.
	Delete(ctx context.Context, key Key) error
}

// Purger removes drafts that have not been touched since before.
type Purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// PgxRepository stores drafts in the booking_drafts table as JSONB.
type PgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) *PgxRepository {
	return &PgxRepository{pool: pool}
}

func (r *PgxRepository) Get(ctx context.Context, key Key) (*Draft, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("state", "updated_at").
		From("public.booking_drafts").
		Where(squirrel.Eq{
			"user_id":    key.UserID,
			"session_id": key.SessionID,
			"flow":       string(key.Flow),
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get draft query failed: %w", err)
	}

	var raw []byte
	var updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&raw, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("get draft failed: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft failed: %w", err)
	}
	d.UpdatedAt = updatedAt
	return &d, nil
}

func (r *PgxRepository) Save(ctx context.Context, d *Draft) error {
	d.UpdatedAt = time.Now().UTC()
	state, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft failed: %w", err)
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.booking_drafts").
		Columns("user_id", "session_id", "flow", "step", "state", "updated_at").
		Values(d.UserID, d.SessionID, string(d.Flow), string(d.Step), state, d.UpdatedAt).
		Suffix("ON CONFLICT (user_id, session_id, flow) DO UPDATE SET step = EXCLUDED.step, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save draft query failed: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.CheckViolation, pgerrcode.InvalidTextRepresentation:
				return ErrInvalidDraft.WithErr(err)
			}
		}
		return fmt.Errorf("save draft failed: %w", err)
	}
	return nil
}

func (r *PgxRepository) Delete(ctx context.Context, key Key) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.booking_drafts").
		Where(squirrel.Eq{
			"user_id":    key.UserID,
			"session_id": key.SessionID,
			"flow":       string(key.Flow),
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete draft query failed: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete draft failed: %w", err)
	}
	return nil
}

func (r *PgxRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.booking_drafts").
		Where(squirrel.Lt{"updated_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge drafts query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge drafts failed: %w", err)
	}
	return ct.RowsAffected(), nil
}
