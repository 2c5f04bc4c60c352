// Package stanza models the wire-level units exchanged over the component
// stream: messages, presences, IQs, the MUC occupant payload and protocol
// error conditions. It owns XML encoding and decoding so that nothing above
// it touches the wire format.
package stanza

import (
	"muc-lab/domain"
)

// Namespaces used on the component stream.
const (
	NSComponentAccept = "jabber:component:accept"
	NSStream          = "http://etherx.jabber.org/streams"
	NSMUC             = "http://jabber.org/protocol/muc"
	NSMUCUser         = "http://jabber.org/protocol/muc#user"
	NSStanzaError     = "urn:ietf:params:xml:ns:xmpp-stanzas"
	NSDiscoInfo       = "http://jabber.org/protocol/disco#info"
	NSDiscoItems      = "http://jabber.org/protocol/disco#items"
)

// MUC status codes attached to self-presences.
const (
	StatusSelfPresence = 110
	StatusNickAssigned = 210
)

type MessageKind string

const (
	MessageNormal    MessageKind = ""
	MessageChat      MessageKind = "chat"
	MessageGroupchat MessageKind = "groupchat"
	MessageError     MessageKind = "error"
)

// Message is one message stanza, inbound or outbound. Extensions holds the
// raw XML of every non-body child so a relayed copy carries unknown payloads
// through unmodified.
type Message struct {
	From       domain.Address
	To         domain.Address
	Kind       MessageKind
	ID         string
	Body       string
	Extensions []string
	Error      *Error
}

func (m Message) IsError() bool {
	return m.Kind == MessageError
}

// ErrorReply builds the protocol error response for this message: addresses
// swapped, correlation id preserved.
func (m Message) ErrorReply(condition Condition, text string) Message {
	return Message{
		From:  m.To,
		To:    m.From,
		Kind:  MessageError,
		ID:    m.ID,
		Error: &Error{Type: condition.Type(), Condition: condition, Text: text},
	}
}

type PresenceKind string

const (
	PresenceAvailable   PresenceKind = ""
	PresenceUnavailable PresenceKind = "unavailable"
	PresenceError       PresenceKind = "error"
)

// Presence is one presence stanza. JoinRequest is set on inbound presences
// carrying the MUC join marker; User carries the occupant payload on
// outbound ones.
type Presence struct {
	From        domain.Address
	To          domain.Address
	Kind        PresenceKind
	ID          string
	JoinRequest bool
	User        *MucUser
	Error       *Error
}

func (p Presence) ErrorReply(condition Condition) Presence {
	return Presence{
		From:  p.To,
		To:    p.From,
		Kind:  PresenceError,
		ID:    p.ID,
		Error: &Error{Type: condition.Type(), Condition: condition},
	}
}

// MucUser is the muc#user extension: who this presence is about and which
// status markers apply.
type MucUser struct {
	Item     Item
	Statuses []int
}

type Item struct {
	Affiliation string
	Role        string
	JID         domain.Address
}

// IQType is the wire type of an IQ stanza.
type IQType string

const (
	IQGet    IQType = "get"
	IQSet    IQType = "set"
	IQResult IQType = "result"
	IQError  IQType = "error"
)

// IQ is decoded only far enough to answer service discovery and refuse the
// rest; Payload names the first child element.
type IQ struct {
	From    domain.Address
	To      domain.Address
	Type    IQType
	ID      string
	Payload string
	Space   string
}

// Condition is a defined protocol error condition.
type Condition string

const (
	ConditionConflict              Condition = "conflict"
	ConditionItemNotFound          Condition = "item-not-found"
	ConditionForbidden             Condition = "forbidden"
	ConditionServiceUnavailable    Condition = "service-unavailable"
	ConditionFeatureNotImplemented Condition = "feature-not-implemented"
)

// Type returns the error class the condition belongs to.
func (c Condition) Type() string {
	switch c {
	case ConditionForbidden:
		return "auth"
	default:
		return "cancel"
	}
}

// Error is the error element of an error-typed stanza.
type Error struct {
	Type      string
	Condition Condition
	Text      string
}
