package inngest

import (
	"github.com/inngest/inngestgo"
)

type client struct {
	inngestClient inngestgo.Client
	refresher     Refresher
}

// RefreshEvent triggers an out-of-schedule refresh.
const RefreshEvent = "ladder/queues.refresh"

// RefreshData is the payload of RefreshEvent.
type RefreshData struct {
	Post   bool `json:"post"`
	DryRun bool `json:"dryRun"`
}
