package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/publisher"
)

// ContentStore is the PostgreSQL content.Store. Items and their variations
// are written in one transaction; reads join the variations back on.
type ContentStore struct {
	pool *pgxpool.Pool
}

// NewContentStore creates a content store backed by the given pool.
func NewContentStore(pool *pgxpool.Pool) *ContentStore {
	return &ContentStore{pool: pool}
}

const itemColumns = `id, organization_id, brand_id, content, content_type, category, target_platforms, status, approval_status, scheduled_for, rejection_reason, needs_attention, created_at, updated_at`

const variationColumns = `id, item_id, platform, content, hashtags, character_count, is_within_limit, target_account_id, scheduled_at, published_post_id, status, attempt_count, last_error`

func scanItem(row pgx.Row) (*content.Item, error) {
	var (
		item      content.Item
		platforms []string
	)
	err := row.Scan(
		&item.ID, &item.OrganizationID, &item.BrandID, &item.Content,
		&item.ContentType, &item.Category, &platforms, &item.Status,
		&item.ApprovalStatus, &item.ScheduledFor, &item.RejectionReason,
		&item.NeedsAttention, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, p := range platforms {
		item.TargetPlatforms = append(item.TargetPlatforms, publisher.Platform(p))
	}
	return &item, nil
}

func scanVariation(row pgx.Row) (*content.Variation, error) {
	var v content.Variation
	err := row.Scan(
		&v.ID, &v.ItemID, &v.Platform, &v.Content, &v.Hashtags,
		&v.CharacterCount, &v.IsWithinLimit, &v.TargetAccountID,
		&v.ScheduledAt, &v.PublishedPostID, &v.Status, &v.AttemptCount,
		&v.LastError,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *ContentStore) CreateItem(ctx context.Context, item *content.Item) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	platforms := make([]string, len(item.TargetPlatforms))
	for i, p := range item.TargetPlatforms {
		platforms[i] = string(p)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO content_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, item.ID, item.OrganizationID, item.BrandID, item.Content,
		item.ContentType, item.Category, platforms, item.Status,
		item.ApprovalStatus, item.ScheduledFor, item.RejectionReason,
		item.NeedsAttention, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert content item: %w", err)
	}

	for i := range item.Variations {
		v := &item.Variations[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO content_variations (`+variationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, v.ID, v.ItemID, v.Platform, v.Content, v.Hashtags,
			v.CharacterCount, v.IsWithinLimit, v.TargetAccountID,
			v.ScheduledAt, v.PublishedPostID, v.Status, v.AttemptCount,
			v.LastError)
		if err != nil {
			return fmt.Errorf("failed to insert content variation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit content item: %w", err)
	}
	return nil
}

func (s *ContentStore) GetItem(ctx context.Context, orgID, itemID uuid.UUID) (*content.Item, error) {
	item, err := scanItem(s.pool.QueryRow(ctx, `
		SELECT `+itemColumns+` FROM content_items
		WHERE id = $1 AND organization_id = $2
	`, itemID, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, content.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to fetch content item: %w", err)
	}

	if err := s.attachVariations(ctx, []*content.Item{item}); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ContentStore) ListItems(ctx context.Context, params content.ListParams) ([]content.Item, error) {
	where := "organization_id = $1"
	args := []any{params.OrganizationID}

	if params.BrandID != uuid.Nil {
		args = append(args, params.BrandID)
		where += fmt.Sprintf(" AND brand_id = $%d", len(args))
	}
	if params.Status != "" {
		args = append(args, params.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if params.NeedsAttention {
		where += " AND needs_attention"
	}

	query := `SELECT ` + itemColumns + ` FROM content_items WHERE ` + where + ` ORDER BY created_at DESC, id ASC`
	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.queryItems(ctx, query, args...)
}

func (s *ContentStore) ListDue(ctx context.Context, now time.Time) ([]content.Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+` FROM content_items
		WHERE status = 'scheduled' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC, id ASC
	`, now)
}

func (s *ContentStore) queryItems(ctx context.Context, query string, args ...any) ([]content.Item, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content items: %w", err)
	}
	defer rows.Close()

	var refs []*content.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		refs = append(refs, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list content items: %w", err)
	}

	if err := s.attachVariations(ctx, refs); err != nil {
		return nil, err
	}

	items := make([]content.Item, len(refs))
	for i, ref := range refs {
		items[i] = *ref
	}
	return items, nil
}

func (s *ContentStore) attachVariations(ctx context.Context, items []*content.Item) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(items))
	byID := make(map[uuid.UUID]*content.Item, len(items))
	for i, item := range items {
		ids[i] = item.ID
		byID[item.ID] = item
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+variationColumns+` FROM content_variations
		WHERE item_id = ANY($1)
		ORDER BY item_id, platform
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to fetch content variations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariation(rows)
		if err != nil {
			return fmt.Errorf("failed to scan content variation: %w", err)
		}
		if item, ok := byID[v.ItemID]; ok {
			item.Variations = append(item.Variations, *v)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to fetch content variations: %w", err)
	}
	return nil
}

func (s *ContentStore) UpdateItem(ctx context.Context, item *content.Item) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE content_items SET
			status = $3,
			approval_status = $4,
			scheduled_for = $5,
			rejection_reason = $6,
			needs_attention = $7,
			updated_at = $8
		WHERE id = $1 AND organization_id = $2
	`, item.ID, item.OrganizationID, item.Status, item.ApprovalStatus,
		item.ScheduledFor, item.RejectionReason, item.NeedsAttention,
		item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update content item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return content.ErrItemNotFound
	}
	return nil
}

func (s *ContentStore) UpdateVariation(ctx context.Context, variation *content.Variation) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE content_variations SET
			scheduled_at = $2,
			published_post_id = $3,
			status = $4,
			attempt_count = $5,
			last_error = $6
		WHERE id = $1
	`, variation.ID, variation.ScheduledAt, variation.PublishedPostID,
		variation.Status, variation.AttemptCount, variation.LastError)
	if err != nil {
		return fmt.Errorf("failed to update content variation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return content.ErrVariationNotFound
	}
	return nil
}
