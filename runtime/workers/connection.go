package workers

import (
	"context"
	"fmt"
	"log/slog"

	"muc-lab/runtime"
	"muc-lab/transport"
)

// ConnectionWorker owns one attempt at the component stream: dial,
// handshake, then serve inbound stanzas into a dispatcher until the stream
// drops. It returns the stream error so the supervisor restarts it after
// the configured interval, which is the whole reconnect policy.
//
// The registry outlives connection attempts, so room state survives a
// reconnect.
type ConnectionWorker struct {
	log      *slog.Logger
	opts     transport.Options
	registry *runtime.Registry
}

func NewConnectionWorker(log *slog.Logger, opts transport.Options, registry *runtime.Registry) *ConnectionWorker {
	return &ConnectionWorker{log: log, opts: opts, registry: registry}
}

func (w *ConnectionWorker) Run(ctx context.Context) error {
	component, err := transport.Dial(ctx, w.log, w.opts)
	if err != nil {
		return fmt.Errorf("component dial: %w", err)
	}
	defer component.Close()

	dispatcher := runtime.NewDispatcher(w.log, w.registry, runtime.NewRouter(w.registry), component)
	return component.Serve(ctx, dispatcher)
}
