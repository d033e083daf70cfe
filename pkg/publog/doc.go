// Package publog records every dispatch attempt against a social platform
// in an append-only log.
//
// The log serves two masters: operators reading the audit trail of what was
// posted where (including verbatim error text for failed dispatches), and
// the publish scheduler computing rate-limit state ("successful posts for
// brand B on platform P in the last 24 hours"). Both work because entries
// are immutable once written.
package publog
