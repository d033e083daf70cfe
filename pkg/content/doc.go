// Package content manages the review and scheduling queue that sits
// between content generation and platform publishing.
//
// Generated content enters the queue as an Item with one Variation per
// target platform. The brand's autopilot approval mode decides where an
// item starts: review mode holds it for a human decision, auto-queue
// makes it schedulable immediately, and auto-post approves it outright.
// From there the item moves through a fixed workflow (pending, scheduled,
// published, rejected, failed) driven by Manager operations.
//
// The Store interface abstracts persistence; MemoryStore backs tests and
// the Postgres implementation lives in internal/storage/postgres.
package content
