package publisher

import "errors"

var (
	// ErrUnknownPlatform is returned when resolving a publisher for a platform nobody registered.
	ErrUnknownPlatform = errors.New("no publisher registered for platform")

	// ErrAlreadyRegistered is returned when registering a second publisher for the same platform.
	ErrAlreadyRegistered = errors.New("publisher already registered for platform")

	// ErrNoAccountMapped is returned when a brand has no connected account for a platform.
	ErrNoAccountMapped = errors.New("no social account mapped for platform")

	// ErrPublishRejected is returned when the platform accepted the request but rejected the post.
	ErrPublishRejected = errors.New("platform rejected the post")

	// ErrEndpointRequired is returned when constructing a webhook publisher without an endpoint.
	ErrEndpointRequired = errors.New("endpoint URL is required")
)
