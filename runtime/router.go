package runtime

import (
	"github.com/samber/lo"

	"muc-lab/domain"
	"muc-lab/stanza"
)

// Router validates groupchat senders and computes the echo fan-out. It is
// pure computation over a roster snapshot: the dispatcher performs the sends
// and translates the typed errors into protocol replies.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Relay returns one echo copy per joined session of every participant in the
// room, the sender's own sessions included (self-echo is required groupchat
// semantics). The echo keeps the id, body and extension payloads of the
// original and rewrites the sender to room/nick.
//
// ErrRoomNotFound when the room does not exist, ErrNotJoined when the sender
// session is not part of the roster.
func (r *Router) Relay(room domain.Address, sender domain.Address, msg stanza.Message) ([]stanza.Message, error) {
	state, err := r.registry.Get(room)
	if err != nil {
		return nil, err
	}

	from, roster, err := state.Resolve(sender)
	if err != nil {
		return nil, err
	}

	echo := stanza.Message{
		From:       state.Address().WithResource(from.Nick),
		Kind:       stanza.MessageGroupchat,
		ID:         msg.ID,
		Body:       msg.Body,
		Extensions: msg.Extensions,
	}

	return lo.FlatMap(roster, func(participant domain.ParticipantInfo, _ int) []stanza.Message {
		return lo.Map(participant.Sessions, func(session domain.Address, _ int) stanza.Message {
			copy := echo
			copy.To = session
			return copy
		})
	}), nil
}
