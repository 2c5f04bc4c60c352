package transport

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"muc-lab/stanza"
)

// Service discovery is the component's one-time static advertisement: the
// identity says "this domain hosts text conferences" and the feature list
// names the MUC protocol. Rooms are not listed; the original service offers
// no room browsing either.

type discoIdentity struct {
	XMLName  xml.Name `xml:"identity"`
	Category string   `xml:"category,attr"`
	Type     string   `xml:"type,attr"`
	Name     string   `xml:"name,attr,omitempty"`
}

type discoFeature struct {
	XMLName xml.Name `xml:"feature"`
	Var     string   `xml:"var,attr"`
}

type discoInfoResult struct {
	XMLName    xml.Name        `xml:"http://jabber.org/protocol/disco#info query"`
	Identities []discoIdentity `xml:"identity"`
	Features   []discoFeature  `xml:"feature"`
}

type discoItemsResult struct {
	XMLName xml.Name `xml:"http://jabber.org/protocol/disco#items query"`
}

type iqReply struct {
	XMLName xml.Name `xml:"iq"`
	From    string   `xml:"from,attr"`
	To      string   `xml:"to,attr"`
	Type    string   `xml:"type,attr"`
	ID      string   `xml:"id,attr,omitempty"`
	Payload any      `xml:",omitempty"`
	Error   string   `xml:",innerxml"`
}

func infoResult() discoInfoResult {
	return discoInfoResult{
		Identities: []discoIdentity{{Category: "conference", Type: "text"}},
		Features: []discoFeature{
			{Var: stanza.NSDiscoInfo},
			{Var: stanza.NSMUC},
		},
	}
}

func (c *Component) handleIQ(iq stanza.IQ) {
	switch {
	case iq.Type == stanza.IQGet && iq.Space == stanza.NSDiscoInfo:
		c.replyIQ(iq, "result", infoResult())
	case iq.Type == stanza.IQGet && iq.Space == stanza.NSDiscoItems:
		c.replyIQ(iq, "result", discoItemsResult{})
	case iq.Type == stanza.IQGet || iq.Type == stanza.IQSet:
		c.replyIQError(iq, stanza.ConditionFeatureNotImplemented)
	default:
		// Inbound results and errors need no answer.
		c.log.Debug("Ignoring iq", "type", string(iq.Type), "payload", iq.Payload)
	}
}

func (c *Component) replyIQ(iq stanza.IQ, iqType string, payload any) {
	reply := iqReply{
		From:    iq.To.String(),
		To:      iq.From.String(),
		Type:    iqType,
		ID:      iq.ID,
		Payload: payload,
	}
	c.sendIQ(reply, iq)
}

func (c *Component) replyIQError(iq stanza.IQ, condition stanza.Condition) {
	reply := iqReply{
		From: iq.To.String(),
		To:   iq.From.String(),
		Type: "error",
		ID:   iq.ID,
		Error: fmt.Sprintf(`<error type=%q><%s xmlns=%q/></error>`,
			condition.Type(), condition, stanza.NSStanzaError),
	}
	c.sendIQ(reply, iq)
}

func (c *Component) sendIQ(reply iqReply, iq stanza.IQ) {
	var buf bytes.Buffer
	if err := xml.NewEncoder(&buf).Encode(reply); err != nil {
		c.log.Warn("Encoding iq reply failed", "id", iq.ID, "error", err)
		return
	}
	if err := c.write(buf.Bytes()); err != nil {
		c.log.Warn("Dropping iq reply", "to", iq.From.String(), "error", err)
	}
}
