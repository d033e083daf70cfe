// Package postgres implements the job, content, and publishing-log stores
// on PostgreSQL via pgx. Schema lives in the repository's migrations
// directory and is applied with goose at startup.
package postgres

import (
	"github.com/postflowhq/postflow/pkg/autopilot"
	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/jobs"
	"github.com/postflowhq/postflow/pkg/publisher"
	"github.com/postflowhq/postflow/pkg/publog"
)

var (
	_ jobs.Store              = (*JobStore)(nil)
	_ content.Store           = (*ContentStore)(nil)
	_ publog.Store            = (*PublogStore)(nil)
	_ publisher.AccountSource = (*AccountSource)(nil)
	_ autopilot.Source        = (*AutopilotSource)(nil)
)
