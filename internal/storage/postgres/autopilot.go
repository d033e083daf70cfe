package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postflowhq/postflow/pkg/autopilot"
	"github.com/postflowhq/postflow/pkg/publisher"
)

// AutopilotSource reads per-brand autopilot policy from the database.
// Brands without a row get a disabled config rather than an error; a brand
// that never configured autopilot simply does not publish automatically.
type AutopilotSource struct {
	pool *pgxpool.Pool
}

// NewAutopilotSource creates an autopilot source backed by the given pool.
func NewAutopilotSource(pool *pgxpool.Pool) *AutopilotSource {
	return &AutopilotSource{pool: pool}
}

func (s *AutopilotSource) Get(ctx context.Context, brandID uuid.UUID) (*autopilot.Config, error) {
	var (
		cfg       autopilot.Config
		platforms []string
		days      int
	)
	err := s.pool.QueryRow(ctx, `
		SELECT brand_id, enabled, approval_mode, max_posts_per_day, min_hours_between, enabled_platforms, posting_days
		FROM autopilot_configs
		WHERE brand_id = $1
	`, brandID).Scan(
		&cfg.BrandID, &cfg.Enabled, &cfg.ApprovalMode, &cfg.MaxPostsPerDay,
		&cfg.MinHoursBetween, &platforms, &days,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &autopilot.Config{
				BrandID:      brandID,
				Enabled:      false,
				ApprovalMode: autopilot.ModeReview,
				PostingDays:  autopilot.AllDays,
			}, nil
		}
		return nil, fmt.Errorf("failed to fetch autopilot config: %w", err)
	}

	for _, p := range platforms {
		cfg.EnabledPlatforms = append(cfg.EnabledPlatforms, publisher.Platform(p))
	}
	cfg.PostingDays = autopilot.WeekdayMask(days)
	return &cfg, nil
}
