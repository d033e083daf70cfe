package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postflowhq/postflow/pkg/publisher"
	"github.com/postflowhq/postflow/pkg/publog"
)

// PublogStore is the PostgreSQL publog.Store. Append-only by construction:
// the store exposes no update or delete and the rate-limit queries lean on
// a partial index over successful entries.
type PublogStore struct {
	pool *pgxpool.Pool
}

// NewPublogStore creates a publishing log store backed by the given pool.
func NewPublogStore(pool *pgxpool.Pool) *PublogStore {
	return &PublogStore{pool: pool}
}

const entryColumns = `id, organization_id, brand_id, content_id, variation_id, platform, status, attempted_at, error, platform_post_id`

const defaultLogPageSize = 50

func scanEntry(row pgx.Row) (*publog.Entry, error) {
	var e publog.Entry
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.BrandID, &e.ContentID, &e.VariationID,
		&e.Platform, &e.Status, &e.AttemptedAt, &e.Error, &e.PlatformPostID,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PublogStore) Append(ctx context.Context, entry *publog.Entry) error {
	if entry == nil {
		return publog.ErrEntryNil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO publishing_log (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.OrganizationID, entry.BrandID, entry.ContentID,
		entry.VariationID, entry.Platform, entry.Status, entry.AttemptedAt,
		entry.Error, entry.PlatformPostID)
	if err != nil {
		return fmt.Errorf("failed to append publishing log entry: %w", err)
	}
	return nil
}

func (s *PublogStore) List(ctx context.Context, filter publog.Filter) (*publog.Page, error) {
	limit := filter.Limit
	if limit <= 0 || limit > defaultLogPageSize*2 {
		limit = defaultLogPageSize
	}

	where := "organization_id = $1"
	args := []any{filter.OrganizationID}

	if filter.BrandID != uuid.Nil {
		args = append(args, filter.BrandID)
		where += fmt.Sprintf(" AND brand_id = $%d", len(args))
	}
	if filter.ContentID != uuid.Nil {
		args = append(args, filter.ContentID)
		where += fmt.Sprintf(" AND content_id = $%d", len(args))
	}
	if filter.Platform != "" {
		args = append(args, filter.Platform)
		where += fmt.Sprintf(" AND platform = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM publishing_log WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count publishing log entries: %w", err)
	}

	if filter.Cursor != "" {
		at, id, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, publog.ErrInvalidCursor
		}
		args = append(args, at, id)
		where += fmt.Sprintf(" AND (attempted_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit)
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM publishing_log
		WHERE `+where+`
		ORDER BY attempted_at DESC, id DESC
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list publishing log entries: %w", err)
	}
	defer rows.Close()

	page := &publog.Page{Total: total}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publishing log entry: %w", err)
		}
		page.Entries = append(page.Entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list publishing log entries: %w", err)
	}

	if len(page.Entries) == limit {
		last := page.Entries[len(page.Entries)-1]
		page.NextCursor = encodeCursor(last.AttemptedAt, last.ID)
	}

	return page, nil
}

func (s *PublogStore) CountSuccessSince(ctx context.Context, brandID uuid.UUID, platform publisher.Platform, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM publishing_log
		WHERE brand_id = $1 AND platform = $2 AND status = 'success' AND attempted_at >= $3
	`, brandID, platform, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count successful publishes: %w", err)
	}
	return count, nil
}

func (s *PublogStore) LastSuccessAt(ctx context.Context, brandID uuid.UUID, platform publisher.Platform) (*time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT attempted_at FROM publishing_log
		WHERE brand_id = $1 AND platform = $2 AND status = 'success'
		ORDER BY attempted_at DESC
		LIMIT 1
	`, brandID, platform).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch last publish time: %w", err)
	}
	return &at, nil
}
