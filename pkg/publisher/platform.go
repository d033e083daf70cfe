package publisher

// Platform identifies a supported social network.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformThreads   Platform = "threads"
	PlatformBluesky   Platform = "bluesky"
)

// Platforms lists every supported platform.
func Platforms() []Platform {
	return []Platform{
		PlatformTwitter,
		PlatformLinkedIn,
		PlatformFacebook,
		PlatformInstagram,
		PlatformTikTok,
		PlatformYouTube,
		PlatformThreads,
		PlatformBluesky,
	}
}

// Valid reports whether the platform is a known value.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitter, PlatformLinkedIn, PlatformFacebook, PlatformInstagram,
		PlatformTikTok, PlatformYouTube, PlatformThreads, PlatformBluesky:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// characterLimits holds the maximum post length per platform. Values track
// each network's documented caption/post limits.
var characterLimits = map[Platform]int{
	PlatformTwitter:   280,
	PlatformLinkedIn:  3000,
	PlatformFacebook:  63206,
	PlatformInstagram: 2200,
	PlatformTikTok:    2200,
	PlatformYouTube:   5000,
	PlatformThreads:   500,
	PlatformBluesky:   300,
}

// CharacterLimit returns the maximum post length for the platform,
// or 0 for unknown platforms.
func CharacterLimit(p Platform) int {
	return characterLimits[p]
}

// WithinLimit reports whether text fits the platform's character limit.
// Counted in runes since every network measures characters, not bytes.
func WithinLimit(p Platform, text string) bool {
	limit := CharacterLimit(p)
	if limit == 0 {
		return false
	}
	return len([]rune(text)) <= limit
}
