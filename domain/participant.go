// Package domain contains core concepts of the occupancy system.
// This file defines Participant entities and related invariants.
package domain

import (
	"github.com/samber/lo"
)

// Participant is the in-room representation of one bare identity: the
// nickname it holds and the sessions currently joined under it.
// Mutations happen only under the owning RoomState lock.
type Participant struct {
	occupant Address
	nick     string
	sessions map[Address]struct{}
}

func NewParticipant(session Address, nick string) *Participant {
	return &Participant{
		occupant: session.Bare(),
		nick:     nick,
		sessions: map[Address]struct{}{session: {}},
	}
}

func (p *Participant) Occupant() Address {
	return p.occupant
}

func (p *Participant) Nick() string {
	return p.nick
}

func (p *Participant) addSession(session Address) {
	p.sessions[session] = struct{}{}
}

// removeSession reports whether the participant is now empty and must be
// dropped from the roster.
func (p *Participant) removeSession(session Address) bool {
	delete(p.sessions, session)
	return len(p.sessions) == 0
}

func (p *Participant) hasSession(session Address) bool {
	_, ok := p.sessions[session]
	return ok
}

// ParticipantInfo is an immutable snapshot of a Participant, safe to iterate
// outside the room lock.
type ParticipantInfo struct {
	Occupant Address
	Nick     string
	Sessions []Address
}

func (p *Participant) info() ParticipantInfo {
	return ParticipantInfo{
		Occupant: p.occupant,
		Nick:     p.nick,
		Sessions: lo.Keys(p.sessions),
	}
}
