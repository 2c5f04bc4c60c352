//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"muc-lab/stanza"
)

// Transport delivers outbound stanzas on the component stream.
// Sends are fire-and-forget: callers log a returned error and move on,
// connection recovery belongs to the supervisor.
type Transport interface {
	SendMessage(msg stanza.Message) error
	SendPresence(p stanza.Presence) error
}

// EventHandler receives the inbound events the transport decodes.
type EventHandler interface {
	OnMessage(msg stanza.Message)
	OnPresence(p stanza.Presence)
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
