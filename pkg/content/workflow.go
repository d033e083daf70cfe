package content

import (
	"context"

	"github.com/postflowhq/postflow/pkg/autopilot"
	"github.com/postflowhq/postflow/pkg/statemachine"
)

// Workflow events. Fired against the shared transition table; the item's
// current status is read from the record, never held by the machine.
const (
	eventReject     = statemachine.StringEvent("reject")
	eventSchedule   = statemachine.StringEvent("schedule")
	eventUnschedule = statemachine.StringEvent("unschedule")
	eventPublish    = statemachine.StringEvent("publish")
	eventFail       = statemachine.StringEvent("fail")
)

func state(s ItemStatus) statemachine.State {
	return statemachine.StringState(s)
}

// newWorkflow builds the content item transition table.
//
//	draft/pending --reject-----> rejected
//	pending -------schedule----> scheduled
//	scheduled -----unschedule--> pending
//	scheduled -----publish-----> published
//	scheduled -----fail--------> failed
//
// Published, rejected, and failed are absorbing. Approval gating
// (only approved items may be scheduled) is enforced by the Manager, which
// owns the approval status; the machine only guards lifecycle shape.
func newWorkflow() *statemachine.Machine {
	m := statemachine.New()

	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(m.AddTransition(state(StatusDraft), state(StatusRejected), eventReject, nil, nil))
	must(m.AddTransition(state(StatusPending), state(StatusRejected), eventReject, nil, nil))
	must(m.AddTransition(state(StatusPending), state(StatusScheduled), eventSchedule, nil, nil))
	must(m.AddTransition(state(StatusScheduled), state(StatusPending), eventUnschedule, nil, nil))
	must(m.AddTransition(state(StatusScheduled), state(StatusPublished), eventPublish, nil, nil))
	must(m.AddTransition(state(StatusScheduled), state(StatusFailed), eventFail, nil, nil))
	// Publish-now bypasses scheduling, so pending items finalize directly.
	must(m.AddTransition(state(StatusPending), state(StatusPublished), eventPublish, nil, nil))
	must(m.AddTransition(state(StatusPending), state(StatusFailed), eventFail, nil, nil))

	return m
}

// Dispatch outcome events, fired by the publish scheduler once every
// variation of an item has reached a terminal state.
const (
	EventPublish = eventPublish
	EventFail    = eventFail
)

var sharedWorkflow = newWorkflow()

// Transition fires one workflow event from the given status and returns the
// next status. Used by dispatch callers outside this package; the Manager
// holds its own machine instance.
func Transition(ctx context.Context, from ItemStatus, event statemachine.StringEvent) (ItemStatus, error) {
	return fire(ctx, sharedWorkflow, from, event)
}

// fire runs one workflow transition and returns the next status.
func fire(ctx context.Context, m *statemachine.Machine, from ItemStatus, event statemachine.StringEvent) (ItemStatus, error) {
	next, err := m.Fire(ctx, state(from), event, nil)
	if err != nil {
		return from, err
	}
	return ItemStatus(next.Name()), nil
}

// initialState maps a brand's approval mode to the starting lifecycle and
// approval statuses of new content. An explicit finite mapping, not string
// checks scattered across call sites.
func initialState(mode autopilot.ApprovalMode, hasSchedule, forceAutoApprove bool) (ItemStatus, ApprovalStatus) {
	if forceAutoApprove {
		if hasSchedule {
			return StatusScheduled, ApprovalAutoApproved
		}
		return StatusPending, ApprovalAutoApproved
	}

	switch mode {
	case autopilot.ModeAutoPost:
		if hasSchedule {
			return StatusScheduled, ApprovalAutoApproved
		}
		return StatusPending, ApprovalAutoApproved
	case autopilot.ModeAutoQueue:
		// No approve click required, but the item stays visible in the
		// pending queue; a schedule time alone makes it eligible.
		if hasSchedule {
			return StatusScheduled, ApprovalPending
		}
		return StatusPending, ApprovalPending
	default: // autopilot.ModeReview
		return StatusPending, ApprovalPending
	}
}
