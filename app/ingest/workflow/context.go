package workflow

import (
	"github.com/pump-pill/arenax/app/ingest/activity"
	"github.com/pump-pill/arenax/pkg/temporal"
)

// CloseEpochWorkflowName is the registered workflow name.
const CloseEpochWorkflowName = "CloseEpochWorkflow"

// Context holds the workflow context.
type Context struct {
	TemporalClient  *temporal.Client
	ActivityContext *activity.Context
}
