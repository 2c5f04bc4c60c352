package runtime

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"muc-lab/contract"
	"muc-lab/domain"
	"muc-lab/errors"
	"muc-lab/stanza"
)

// Dispatcher is the boundary between the transport and the room logic: it
// receives inbound message/presence events, drives the registry, rooms and
// router, and turns their results into outbound sends or protocol error
// replies. It never mutates room state itself and the core never sends on
// its own failure path, so every protocol translation lives here.
//
// Safe for concurrent use: the registry and each RoomState do their own
// locking, and fan-out iterates snapshots taken under the room lock.
type Dispatcher struct {
	log       *slog.Logger
	registry  *Registry
	router    *Router
	transport contract.Transport
}

func NewDispatcher(log *slog.Logger, registry *Registry, router *Router, transport contract.Transport) *Dispatcher {
	return &Dispatcher{log: log, registry: registry, router: router, transport: transport}
}

// OnMessage handles one inbound message stanza.
func (d *Dispatcher) OnMessage(msg stanza.Message) {
	if msg.To.IsDomain() {
		// Errors addressed to the service are dropped to avoid error loops.
		if msg.IsError() {
			d.log.Debug("Dropping error message addressed to the service", "from", msg.From.String())
			return
		}
		d.sendMessage(msg.ErrorReply(stanza.ConditionServiceUnavailable, ""))
		return
	}

	if msg.Kind != stanza.MessageGroupchat || !msg.To.IsBare() {
		d.log.Debug("Ignoring non-groupchat message", "to", msg.To.String(), "type", string(msg.Kind))
		return
	}

	echoes, err := d.router.Relay(msg.To, msg.From, msg)
	switch err {
	case nil:
	case errors.ErrRoomNotFound:
		d.sendMessage(msg.ErrorReply(stanza.ConditionItemNotFound, "group chat does not exists"))
		return
	case errors.ErrNotJoined:
		d.sendMessage(msg.ErrorReply(stanza.ConditionForbidden, "You are not a participant of this room"))
		return
	default:
		d.log.Warn("Relay failed", "room", msg.To.String(), "error", err)
		return
	}

	for _, echo := range echoes {
		d.sendMessage(echo)
	}
}

// OnPresence handles one inbound presence stanza.
func (d *Dispatcher) OnPresence(p stanza.Presence) {
	if p.To.IsDomain() {
		d.log.Debug("Presence to service received", "from", p.From.String())
		return
	}

	room := d.registry.GetOrCreate(p.To)
	desiredNick := p.To.Resource
	client := p.From

	if p.JoinRequest && p.Kind == stanza.PresenceAvailable {
		d.join(room, client, desiredNick, p)
	}
	if p.Kind == stanza.PresenceUnavailable {
		d.leave(room, client, desiredNick)
	}
}

func (d *Dispatcher) join(room *domain.RoomState, client domain.Address, desiredNick string, request stanza.Presence) {
	d.log.Info(fmt.Sprintf("%s joins room %s as %s", client, room.Address(), desiredNick))

	result, err := room.Join(client, desiredNick)
	if err != nil {
		// The only join failure; surfaced to the requester alone.
		d.sendPresence(request.ErrorReply(stanza.ConditionConflict))
		return
	}

	// Replay the existing roster to the joiner and announce the joiner to
	// every session of every other occupant. The self-confirmation goes
	// last so the joiner observes the full roster before its own presence.
	for _, participant := range result.Roster {
		if participant.Occupant.EqualBare(result.Occupant) {
			continue
		}
		d.sendPresence(occupantPresence(room.Address(), participant.Nick, client, participant.Occupant))
		for _, session := range participant.Sessions {
			d.sendPresence(occupantPresence(room.Address(), result.Nick, session, result.Occupant))
		}
	}

	self := occupantPresence(room.Address(), result.Nick, client, result.Occupant)
	self.User.Statuses = []int{stanza.StatusSelfPresence, stanza.StatusNickAssigned}
	d.sendPresence(self)
}

func (d *Dispatcher) leave(room *domain.RoomState, client domain.Address, nick string) {
	result := room.Leave(client, nick)
	if !result.Matched {
		d.log.Debug("Ignoring leave from a session that is not joined",
			"from", client.String(), "room", room.Address().String())
		return
	}
	d.log.Info(fmt.Sprintf("%s leaves room %s", client, room.Address()))

	if result.Removed {
		for _, participant := range result.Roster {
			for _, session := range participant.Sessions {
				gone := unavailablePresence(room.Address(), nick, session, client.Bare())
				gone.User.Item.Role = "none"
				d.sendPresence(gone)
			}
		}
	}

	// The departure is acknowledged to the matched session regardless of
	// whether other sessions of the occupant remain joined.
	self := unavailablePresence(room.Address(), nick, client, client.Bare())
	self.User.Statuses = []int{stanza.StatusSelfPresence}
	d.sendPresence(self)
}

// occupantPresence builds an "available" occupant presence from room/nick,
// carrying the occupant's bare identity.
func occupantPresence(room domain.Address, nick string, to domain.Address, occupant domain.Address) stanza.Presence {
	return stanza.Presence{
		From: room.WithResource(nick),
		To:   to,
		ID:   uuid.NewString(),
		User: &stanza.MucUser{
			Item: stanza.Item{Affiliation: "none", Role: "participant", JID: occupant},
		},
	}
}

func unavailablePresence(room domain.Address, nick string, to domain.Address, occupant domain.Address) stanza.Presence {
	p := occupantPresence(room, nick, to, occupant)
	p.Kind = stanza.PresenceUnavailable
	return p
}

// Sends are fire-and-forget: a failed write is logged, the supervisor owns
// connection recovery.
func (d *Dispatcher) sendMessage(msg stanza.Message) {
	if err := d.transport.SendMessage(msg); err != nil {
		d.log.Warn("Dropping outbound message", "to", msg.To.String(), "error", err)
	}
}

func (d *Dispatcher) sendPresence(p stanza.Presence) {
	if err := d.transport.SendPresence(p); err != nil {
		d.log.Warn("Dropping outbound presence", "to", p.To.String(), "error", err)
	}
}
