// Package jobs implements an organization-scoped background job queue with
// priority ordering, scheduled execution, per-organization admission
// control, and retry-as-new-job semantics.
//
// # Submission
//
// Every job type registers a payload schema before use. Enqueue validates
// the payload, counts the organization's outstanding (pending + running)
// jobs against a configurable limit, and inserts a pending job:
//
//	q, _ := jobs.NewQueue(store, jobs.WithOrgJobLimit(25))
//	_ = q.RegisterType("scrape_website", validateScrapePayload)
//	job, err := q.Enqueue(ctx, jobs.EnqueueParams{
//		Type:           "scrape_website",
//		OrganizationID: orgID,
//		Payload:        ScrapePayload{URL: "https://example.com"},
//	})
//
// Validation failures return a *PayloadValidationError carrying the
// field-level issues; admission failures return a *TooManyJobsError with
// the organization's current count and limit. Neither leaves partial state.
//
// # Execution
//
// Worker polls the store, atomically claims one pending job at a time
// (priority desc, runAt asc, createdAt asc), and runs the handler
// registered for the job's type. The atomic claim is the load-bearing
// invariant: two workers racing on the same job must not both succeed, so
// Store implementations back it with a conditional update.
//
// A failed job stays failed. Queue.Retry creates a sibling job with high
// priority and the same payload, back-referencing the original, which
// remains immutable for audit. This keeps transient-failure retries an
// explicit human decision instead of silent multiplication.
package jobs
