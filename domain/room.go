package domain

import (
	"sync"

	"github.com/samber/lo"

	"muc-lab/errors"
)

// RoomState holds the roster of one room and owns its two invariants:
// nicknames are unique across the roster, and one bare identity maps to at
// most one Participant. Join, Leave and Resolve serialize on the room mutex,
// so two rooms make progress independently while operations on the same room
// never interleave.
//
// Every mutation returns a roster snapshot taken under the same lock.
// Broadcast fan-out must iterate that snapshot, never the live roster.
type RoomState struct {
	mu     sync.Mutex
	addr   Address
	roster []*Participant
}

func NewRoomState(addr Address) *RoomState {
	return &RoomState{addr: addr.Bare()}
}

func (r *RoomState) Address() Address {
	return r.addr
}

// JoinResult reports the outcome of a successful join.
type JoinResult struct {
	// Nick actually assigned. A second session of an already joined
	// identity inherits the existing nickname regardless of what it asked.
	Nick string
	// Occupant is the joiner's bare identity.
	Occupant Address
	// Roster is the post-join snapshot, joiner included.
	Roster []ParticipantInfo
}

// Join adds a session to the room.
//
// A session whose bare identity is already present is attached to the
// existing Participant and desiredNick is ignored. Otherwise a desiredNick
// held by another occupant fails with ErrNickAlreadyInUse and nothing is
// mutated; else a new Participant enters the roster.
func (r *RoomState) Join(session Address, desiredNick string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if participant := r.find(session); participant != nil {
		participant.addSession(session)
		return JoinResult{Nick: participant.Nick(), Occupant: participant.Occupant(), Roster: r.snapshot()}, nil
	}

	if r.nickInUse(desiredNick) {
		return JoinResult{}, errors.ErrNickAlreadyInUse
	}

	r.roster = append(r.roster, NewParticipant(session, desiredNick))
	return JoinResult{Nick: desiredNick, Occupant: session.Bare(), Roster: r.snapshot()}, nil
}

// LeaveResult reports the outcome of a leave attempt.
type LeaveResult struct {
	// Matched is true when the request came from a joined session holding
	// the given nick. Only a matched leave gets acknowledged.
	Matched bool
	// Removed is true only when the last session of the occupant left and
	// the Participant was dropped from the roster.
	Removed bool
	// Roster is the post-leave snapshot, departed occupant excluded.
	Roster []ParticipantInfo
}

// Leave detaches a session from its Participant. A session that is not
// joined, or a nick that does not match the occupant's current nickname
// (stale resource), is a no-op with Matched false.
func (r *RoomState) Leave(session Address, nick string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	participant := r.find(session)
	if participant == nil || participant.Nick() != nick || !participant.hasSession(session) {
		return LeaveResult{Roster: r.snapshot()}
	}
	if participant.removeSession(session) {
		r.roster = lo.Without(r.roster, participant)
		return LeaveResult{Matched: true, Removed: true, Roster: r.snapshot()}
	}
	return LeaveResult{Matched: true, Roster: r.snapshot()}
}

// Resolve returns the Participant owning a sender session together with a
// roster snapshot, for the relay path. ErrNotJoined when the bare identity
// is absent or the literal session is not joined.
func (r *RoomState) Resolve(sender Address) (ParticipantInfo, []ParticipantInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	participant := r.find(sender)
	if participant == nil || !participant.hasSession(sender) {
		return ParticipantInfo{}, nil, errors.ErrNotJoined
	}
	return participant.info(), r.snapshot(), nil
}

// Participants returns a snapshot of the current roster.
func (r *RoomState) Participants() []ParticipantInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// find locates the Participant for a session's bare identity. Callers hold r.mu.
func (r *RoomState) find(session Address) *Participant {
	bare := session.Bare()
	for _, participant := range r.roster {
		if participant.Occupant().EqualBare(bare) {
			return participant
		}
	}
	return nil
}

func (r *RoomState) nickInUse(nick string) bool {
	for _, participant := range r.roster {
		if participant.Nick() == nick {
			return true
		}
	}
	return false
}

func (r *RoomState) snapshot() []ParticipantInfo {
	return lo.Map(r.roster, func(p *Participant, _ int) ParticipantInfo {
		return p.info()
	})
}
