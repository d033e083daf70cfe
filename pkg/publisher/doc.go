// Package publisher defines the capability boundary between the content
// pipeline and the social networks it posts to.
//
// One Publisher implementation exists per platform, selected through a
// Registry keyed on the Platform enum. The pipeline itself never knows how
// a post reaches a network; it hands a platform-ready Post plus the
// connected Account to whatever the registry resolves.
//
// WebhookPublisher is the reference implementation: it forwards posts to a
// per-platform connector service over HTTP. Swapping in a direct API
// client for a platform is a Registry change, not a pipeline change.
package publisher
