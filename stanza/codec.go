package stanza

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"muc-lab/domain"
)

// xmlMessage and friends mirror the wire layout for marshalling. Field order
// matters: body first, then raw extensions, then the error element.
type xmlMessage struct {
	XMLName    xml.Name  `xml:"message"`
	From       string    `xml:"from,attr,omitempty"`
	To         string    `xml:"to,attr,omitempty"`
	Type       string    `xml:"type,attr,omitempty"`
	ID         string    `xml:"id,attr,omitempty"`
	Body       *xmlBody  `xml:",omitempty"`
	Extensions string    `xml:",innerxml"`
	Error      *xmlError `xml:",omitempty"`
}

type xmlBody struct {
	XMLName xml.Name `xml:"body"`
	Value   string   `xml:",chardata"`
}

type xmlPresence struct {
	XMLName xml.Name    `xml:"presence"`
	From    string      `xml:"from,attr,omitempty"`
	To      string      `xml:"to,attr,omitempty"`
	Type    string      `xml:"type,attr,omitempty"`
	ID      string      `xml:"id,attr,omitempty"`
	User    *xmlMucUser `xml:",omitempty"`
	Error   *xmlError   `xml:",omitempty"`
}

type xmlMucUser struct {
	XMLName  xml.Name    `xml:"http://jabber.org/protocol/muc#user x"`
	Item     xmlItem     `xml:"item"`
	Statuses []xmlStatus `xml:"status,omitempty"`
}

type xmlItem struct {
	Affiliation string `xml:"affiliation,attr"`
	Role        string `xml:"role,attr"`
	JID         string `xml:"jid,attr,omitempty"`
}

type xmlStatus struct {
	Code int `xml:"code,attr"`
}

type xmlError struct {
	XMLName xml.Name `xml:"error"`
	Type    string   `xml:"type,attr"`
	Inner   string   `xml:",innerxml"`
}

func toXMLError(e *Error) *xmlError {
	if e == nil {
		return nil
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<%s xmlns="%s"/>`, e.Condition, NSStanzaError)
	if e.Text != "" {
		buf.WriteString(`<text xmlns="` + NSStanzaError + `">`)
		_ = xml.EscapeText(&buf, []byte(e.Text))
		buf.WriteString(`</text>`)
	}
	return &xmlError{Type: e.Type, Inner: buf.String()}
}

func addrString(a domain.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

// XML serializes the message for the component stream.
func (m Message) XML() ([]byte, error) {
	out := xmlMessage{
		From:       addrString(m.From),
		To:         addrString(m.To),
		Type:       string(m.Kind),
		ID:         m.ID,
		Extensions: joinRaw(m.Extensions),
		Error:      toXMLError(m.Error),
	}
	if m.Body != "" {
		out.Body = &xmlBody{Value: m.Body}
	}
	return xml.Marshal(out)
}

// XML serializes the presence for the component stream.
func (p Presence) XML() ([]byte, error) {
	out := xmlPresence{
		From:  addrString(p.From),
		To:    addrString(p.To),
		Type:  string(p.Kind),
		ID:    p.ID,
		Error: toXMLError(p.Error),
	}
	if p.User != nil {
		user := &xmlMucUser{
			Item: xmlItem{
				Affiliation: p.User.Item.Affiliation,
				Role:        p.User.Item.Role,
				JID:         addrString(p.User.Item.JID),
			},
		}
		for _, code := range p.User.Statuses {
			user.Statuses = append(user.Statuses, xmlStatus{Code: code})
		}
		out.User = user
	}
	return xml.Marshal(out)
}

func joinRaw(parts []string) string {
	var buf bytes.Buffer
	for _, part := range parts {
		buf.WriteString(part)
	}
	return buf.String()
}

// DecodeMessage consumes one message element from the decoder, start already
// read. Non-body children are kept as raw XML in Extensions.
func DecodeMessage(dec *xml.Decoder, start xml.StartElement) (Message, error) {
	msg := Message{
		From: parseAddrAttr(start, "from"),
		To:   parseAddrAttr(start, "to"),
		Kind: MessageKind(attrValue(start, "type")),
		ID:   attrValue(start, "id"),
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return msg, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "body" && inStreamNamespace(t.Name.Space) {
				var body string
				if err := dec.DecodeElement(&body, &t); err != nil {
					return msg, err
				}
				msg.Body = body
				continue
			}
			raw, err := rawSubtree(dec, t)
			if err != nil {
				return msg, err
			}
			msg.Extensions = append(msg.Extensions, raw)
		case xml.EndElement:
			return msg, nil
		}
	}
}

// DecodePresence consumes one presence element, noting only the attributes
// and the MUC join marker; other children are skipped.
func DecodePresence(dec *xml.Decoder, start xml.StartElement) (Presence, error) {
	presence := Presence{
		From: parseAddrAttr(start, "from"),
		To:   parseAddrAttr(start, "to"),
		Kind: PresenceKind(attrValue(start, "type")),
		ID:   attrValue(start, "id"),
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return presence, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "x" && t.Name.Space == NSMUC {
				presence.JoinRequest = true
			}
			if err := dec.Skip(); err != nil {
				return presence, err
			}
		case xml.EndElement:
			return presence, nil
		}
	}
}

// DecodeIQ consumes one iq element, recording the name and namespace of its
// first child.
func DecodeIQ(dec *xml.Decoder, start xml.StartElement) (IQ, error) {
	iq := IQ{
		From: parseAddrAttr(start, "from"),
		To:   parseAddrAttr(start, "to"),
		Type: IQType(attrValue(start, "type")),
		ID:   attrValue(start, "id"),
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return iq, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if iq.Payload == "" {
				iq.Payload = t.Name.Local
				iq.Space = t.Name.Space
			}
			if err := dec.Skip(); err != nil {
				return iq, err
			}
		case xml.EndElement:
			return iq, nil
		}
	}
}

// rawSubtree re-encodes one child element, attributes and nested content
// included, so it can be carried through verbatim.
//
// The decoder resolves namespaces into Name.Space while the original xmlns
// attributes stay in Attr. Encoding a resolved name would emit a second
// xmlns declaration next to the surviving attribute, so names go out with
// Space cleared and the document's own declarations are the only ones kept.
func rawSubtree(dec *xml.Decoder, start xml.StartElement) (string, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeToken(unresolved(start)); err != nil {
		return "", err
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			tok = unresolved(t)
		case xml.EndElement:
			depth--
			tok = xml.EndElement{Name: xml.Name{Local: t.Name.Local}}
		default:
			tok = xml.CopyToken(tok)
		}
		if err := enc.EncodeToken(tok); err != nil {
			return "", err
		}
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func unresolved(start xml.StartElement) xml.StartElement {
	out := start.Copy()
	out.Name.Space = ""
	return out
}

func attrValue(se xml.StartElement, name string) string {
	for _, attr := range se.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

func parseAddrAttr(se xml.StartElement, name string) domain.Address {
	raw := attrValue(se, name)
	if raw == "" {
		return domain.Address{}
	}
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		return domain.Address{}
	}
	return addr
}

// inStreamNamespace accepts children that either carry no namespace or
// inherit the stream default.
func inStreamNamespace(space string) bool {
	return space == "" || space == NSComponentAccept
}
