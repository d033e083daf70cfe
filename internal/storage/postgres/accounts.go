package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postflowhq/postflow/pkg/publisher"
)

// AccountSource resolves connected social accounts from the database.
type AccountSource struct {
	pool *pgxpool.Pool
}

// NewAccountSource creates an account source backed by the given pool.
func NewAccountSource(pool *pgxpool.Pool) *AccountSource {
	return &AccountSource{pool: pool}
}

func (s *AccountSource) Account(ctx context.Context, brandID uuid.UUID, platform publisher.Platform) (*publisher.Account, error) {
	var account publisher.Account
	err := s.pool.QueryRow(ctx, `
		SELECT id, brand_id, platform, handle, access_token
		FROM social_accounts
		WHERE brand_id = $1 AND platform = $2
	`, brandID, platform).Scan(
		&account.ID, &account.BrandID, &account.Platform,
		&account.Handle, &account.AccessToken,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, publisher.ErrNoAccountMapped
		}
		return nil, fmt.Errorf("failed to fetch social account: %w", err)
	}
	return &account, nil
}
