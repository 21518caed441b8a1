package inngest

import (
	"context"
	"net/http"
	"time"

	"github.com/mauv0809/inhouse-ladder/internal/queue"
)

type InngestClient interface {
	Serve() http.Handler
	SendEvent(name string, data map[string]any)
}

// Refresher is the queue display refresh driven by the scheduled function.
type Refresher interface {
	RefreshQueues(ctx context.Context, now time.Time, post, dryRun bool) ([]queue.QueueView, error)
}
