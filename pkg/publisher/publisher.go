package publisher

import (
	"context"

	"github.com/google/uuid"
)

// Account is a connected social account a brand publishes through.
type Account struct {
	ID          uuid.UUID
	BrandID     uuid.UUID
	Platform    Platform
	Handle      string
	AccessToken string
}

// Post is the platform-ready payload handed to a Publisher.
type Post struct {
	Text      string
	Hashtags  []string
	MediaURLs []string
}

// Result is the outcome of a single publish call.
type Result struct {
	PlatformPostID string
	URL            string
}

// Profile is the identity information behind a connected account.
type Profile struct {
	ID            string
	DisplayName   string
	Handle        string
	FollowerCount int
}

// Publisher posts content to one social platform. Implementations must
// honor ctx cancellation; dispatch callers always set a deadline.
type Publisher interface {
	Publish(ctx context.Context, account Account, post Post) (*Result, error)
	Profile(ctx context.Context, account Account) (*Profile, error)
}

// AccountSource resolves the connected account for a brand+platform pair.
type AccountSource interface {
	// Account returns the account mapped to the brand and platform, or
	// ErrNoAccountMapped when the brand has not connected that platform.
	Account(ctx context.Context, brandID uuid.UUID, platform Platform) (*Account, error)
}
