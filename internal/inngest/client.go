package inngest

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
)

// New registers the ladder functions on inngestClient.
func New(inngestClient inngestgo.Client, refresher Refresher) InngestClient {
	c := &client{
		inngestClient: inngestClient,
		refresher:     refresher,
	}
	c.createRefreshFunction()
	return c
}

func (i *client) createRefreshFunction() inngestgo.ServableFunction {
	config := inngestgo.FunctionOpts{
		ID:   "refresh-queue-display",
		Name: "Refresh queue display",
	}
	f, err := inngestgo.CreateFunction(
		i.inngestClient,
		config,
		inngestgo.MultipleTriggers{
			inngestgo.CronTrigger("*/5 * * * *"),
			inngestgo.EventTrigger(RefreshEvent, nil),
		},
		func(ctx context.Context, input inngestgo.Input[RefreshData]) (any, error) {
			// Read-only: schedules flip channel activity, membership is untouched.
			count, err := step.Run(ctx, "refresh-queues", func(ctx context.Context) (int, error) {
				views, err := i.refresher.RefreshQueues(ctx, time.Now(), input.Event.Data.Post, input.Event.Data.DryRun)
				return len(views), err
			})
			if err != nil {
				return nil, err
			}
			log.Info("Scheduled queue refresh done", "queues", count)
			return map[string]int{"queues": count}, nil
		},
	)
	if err != nil {
		log.Fatal("Failed to create function", "error", err)
	}
	return f
}

func (i *client) Serve() http.Handler {
	return i.inngestClient.Serve()
}

func (i *client) SendEvent(name string, data map[string]any) {
	if _, err := i.inngestClient.Send(context.Background(), inngestgo.Event{Name: name, Data: data}); err != nil {
		log.Error("Failed to send inngest event", "name", name, "error", err)
	}
}
