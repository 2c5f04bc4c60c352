package runtime

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"muc-lab/domain"
	"muc-lab/mocks"
	"muc-lab/stanza"
)

var service = domain.MustParseAddress("muc.example.org")

// outbox collects everything the dispatcher pushed through the transport.
type outbox struct {
	messages  []stanza.Message
	presences []stanza.Presence
}

func (o *outbox) reset() {
	o.messages = nil
	o.presences = nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *Registry, *outbox) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	out := &outbox{}
	transport.EXPECT().SendMessage(gomock.Any()).
		Do(func(msg stanza.Message) { out.messages = append(out.messages, msg) }).
		Return(nil).AnyTimes()
	transport.EXPECT().SendPresence(gomock.Any()).
		Do(func(p stanza.Presence) { out.presences = append(out.presences, p) }).
		Return(nil).AnyTimes()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	return NewDispatcher(log, registry, NewRouter(registry), transport), registry, out
}

func joinPresence(from domain.Address, nick string) stanza.Presence {
	return stanza.Presence{From: from, To: lobby.WithResource(nick), JoinRequest: true}
}

func leavePresence(from domain.Address, nick string) stanza.Presence {
	return stanza.Presence{From: from, To: lobby.WithResource(nick), Kind: stanza.PresenceUnavailable}
}

func presencesTo(out *outbox, to domain.Address) []stanza.Presence {
	return lo.Filter(out.presences, func(p stanza.Presence, _ int) bool { return p.To == to })
}

func TestDispatcher_LobbyScenario(t *testing.T) {
	req := require.New(t)
	dispatcher, _, out := newTestDispatcher(t)

	// Given an empty lobby, alice@s1 joins desiring nick "alice"
	dispatcher.OnPresence(joinPresence(aliceS1, "alice"))

	// Then only the self-confirmation is emitted
	req.Empty(out.messages)
	req.Len(out.presences, 1)
	self := out.presences[0]
	req.Equal(aliceS1, self.To)
	req.Equal("lobby@muc.example.org/alice", self.From.String())
	req.Equal(stanza.PresenceAvailable, self.Kind)
	req.Equal([]int{stanza.StatusSelfPresence, stanza.StatusNickAssigned}, self.User.Statuses)
	req.Equal(aliceS1.Bare(), self.User.Item.JID)

	// When bob desires the taken nick
	out.reset()
	dispatcher.OnPresence(joinPresence(bobS1, "alice"))

	// Then a single conflict error goes back to bob and alice is unaffected
	req.Len(out.presences, 1)
	conflict := out.presences[0]
	req.Equal(bobS1, conflict.To)
	req.Equal(stanza.PresenceError, conflict.Kind)
	req.Equal(stanza.ConditionConflict, conflict.Error.Condition)

	// When alice's second session joins desiring "carol"
	out.reset()
	dispatcher.OnPresence(joinPresence(aliceS2, "carol"))

	// Then it inherits the occupant's nick; same Participant, no arrivals
	req.Len(out.presences, 1)
	req.Equal(aliceS2, out.presences[0].To)
	req.Equal("lobby@muc.example.org/alice", out.presences[0].From.String())

	// When alice@s1 sends a groupchat message
	out.reset()
	dispatcher.OnMessage(stanza.Message{
		From: aliceS1,
		To:   lobby,
		Kind: stanza.MessageGroupchat,
		ID:   "m1",
		Body: "hi",
	})

	// Then both of alice's sessions receive the echo from lobby/alice
	req.Len(out.messages, 2)
	targets := lo.Map(out.messages, func(m stanza.Message, _ int) domain.Address { return m.To })
	req.ElementsMatch([]domain.Address{aliceS1, aliceS2}, targets)
	for _, echo := range out.messages {
		req.Equal("lobby@muc.example.org/alice", echo.From.String())
		req.Equal("hi", echo.Body)
		req.Equal("m1", echo.ID)
	}
}

func TestDispatcher_RosterReplayCompleteness(t *testing.T) {
	req := require.New(t)
	dispatcher, _, out := newTestDispatcher(t)
	bobS2 := domain.MustParseAddress("bob@example.org/s2")
	carolS1 := domain.MustParseAddress("carol@example.org/s1")

	// Given alice (one session) and bob (two sessions) already joined
	dispatcher.OnPresence(joinPresence(aliceS1, "alice"))
	dispatcher.OnPresence(joinPresence(bobS1, "bob"))
	dispatcher.OnPresence(joinPresence(bobS2, "bob"))
	out.reset()

	// When carol joins
	dispatcher.OnPresence(joinPresence(carolS1, "carol"))

	// Then carol receives one replay per existing occupant plus the
	// self-confirmation, and it comes last
	toCarol := presencesTo(out, carolS1)
	req.Len(toCarol, 3)
	replayFrom := lo.Map(toCarol[:2], func(p stanza.Presence, _ int) string { return p.From.String() })
	req.ElementsMatch([]string{"lobby@muc.example.org/alice", "lobby@muc.example.org/bob"}, replayFrom)
	last := out.presences[len(out.presences)-1]
	req.Equal(carolS1, last.To)
	req.Contains(last.User.Statuses, stanza.StatusSelfPresence)

	// And every session of every other occupant gets exactly one arrival
	for _, session := range []domain.Address{aliceS1, bobS1, bobS2} {
		arrivals := presencesTo(out, session)
		req.Len(arrivals, 1, session.String())
		req.Equal("lobby@muc.example.org/carol", arrivals[0].From.String())
		req.Equal(carolS1.Bare(), arrivals[0].User.Item.JID)
		req.Empty(arrivals[0].User.Statuses)
	}

	req.Len(out.presences, 6)
}

func TestDispatcher_MessageToService(t *testing.T) {
	req := require.New(t)
	dispatcher, registry, out := newTestDispatcher(t)

	// A plain message to the service address is refused
	dispatcher.OnMessage(stanza.Message{From: aliceS1, To: service, ID: "m7"})

	req.Len(out.messages, 1)
	reply := out.messages[0]
	req.Equal(stanza.MessageError, reply.Kind)
	req.Equal(aliceS1, reply.To)
	req.Equal("m7", reply.ID)
	req.Equal(stanza.ConditionServiceUnavailable, reply.Error.Condition)

	// An error-typed message is dropped silently to avoid loops
	out.reset()
	dispatcher.OnMessage(stanza.Message{From: aliceS1, To: service, Kind: stanza.MessageError})
	req.Empty(out.messages)
	req.Empty(registry.Rooms())
}

func TestDispatcher_GroupchatErrors(t *testing.T) {
	req := require.New(t)
	dispatcher, _, out := newTestDispatcher(t)

	// Unknown room
	dispatcher.OnMessage(stanza.Message{From: aliceS1, To: lobby, Kind: stanza.MessageGroupchat, ID: "m2"})
	req.Len(out.messages, 1)
	req.Equal(stanza.ConditionItemNotFound, out.messages[0].Error.Condition)
	req.Equal("m2", out.messages[0].ID)

	// Known room, non-participant sender
	dispatcher.OnPresence(joinPresence(aliceS1, "alice"))
	out.reset()
	dispatcher.OnMessage(stanza.Message{From: bobS1, To: lobby, Kind: stanza.MessageGroupchat, ID: "m3"})
	req.Len(out.messages, 1)
	req.Equal(stanza.ConditionForbidden, out.messages[0].Error.Condition)
	req.Equal(bobS1, out.messages[0].To)
}

func TestDispatcher_Leave(t *testing.T) {
	req := require.New(t)
	dispatcher, _, out := newTestDispatcher(t)

	dispatcher.OnPresence(joinPresence(aliceS1, "alice"))
	dispatcher.OnPresence(joinPresence(aliceS2, "alice"))
	dispatcher.OnPresence(joinPresence(bobS1, "bob"))
	out.reset()

	// When one of alice's two sessions leaves
	dispatcher.OnPresence(leavePresence(aliceS1, "alice"))

	// Then the occupant is still present: only the departure acknowledgment
	req.Len(out.presences, 1)
	ack := out.presences[0]
	req.Equal(aliceS1, ack.To)
	req.Equal(stanza.PresenceUnavailable, ack.Kind)
	req.Equal("lobby@muc.example.org/alice", ack.From.String())
	req.Equal([]int{stanza.StatusSelfPresence}, ack.User.Statuses)

	// When the last session leaves
	out.reset()
	dispatcher.OnPresence(leavePresence(aliceS2, "alice"))

	// Then every remaining session is notified with role none
	toBob := presencesTo(out, bobS1)
	req.Len(toBob, 1)
	req.Equal(stanza.PresenceUnavailable, toBob[0].Kind)
	req.Equal("none", toBob[0].User.Item.Role)
	req.Equal(aliceS2.Bare(), toBob[0].User.Item.JID)

	// And the leaving session still gets its acknowledgment
	toAlice := presencesTo(out, aliceS2)
	req.Len(toAlice, 1)
	req.Equal([]int{stanza.StatusSelfPresence}, toAlice[0].User.Statuses)
	req.Len(out.presences, 2)

	// And alice can no longer post
	out.reset()
	dispatcher.OnMessage(stanza.Message{From: aliceS2, To: lobby, Kind: stanza.MessageGroupchat})
	req.Len(out.messages, 1)
	req.Equal(stanza.ConditionForbidden, out.messages[0].Error.Condition)
}

func TestDispatcher_LeaveFromNonParticipant(t *testing.T) {
	req := require.New(t)
	dispatcher, _, out := newTestDispatcher(t)

	dispatcher.OnPresence(joinPresence(aliceS1, "alice"))
	out.reset()

	// When a client that never joined sends an unavailable presence
	dispatcher.OnPresence(leavePresence(bobS1, "alice"))

	// Then nobody is notified, not even the sender
	req.Empty(out.presences)

	// And a stale nick from a joined session is equally silent
	dispatcher.OnPresence(leavePresence(aliceS1, "carol"))
	req.Empty(out.presences)
}

func TestDispatcher_ServicePresenceIgnored(t *testing.T) {
	req := require.New(t)
	dispatcher, registry, out := newTestDispatcher(t)

	dispatcher.OnPresence(stanza.Presence{From: aliceS1, To: service})

	req.Empty(out.presences)
	req.Empty(registry.Rooms())
}
