// Package transport speaks the external-component protocol: one TCP
// connection carrying an XML stream, authenticated by a digest handshake,
// over which stanzas flow in both directions. Everything above this package
// deals in decoded stanzas only.
package transport

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"muc-lab/contract"
	"muc-lab/domain"
	"muc-lab/errors"
	"muc-lab/stanza"
)

// Options carries what the stream needs to come up; values come from the
// environment config.
type Options struct {
	// ComponentName is the service domain this component binds, and the
	// domain every room address lives under.
	ComponentName string
	SharedSecret  string
	Host          string
	Port          int
}

// Component is one authenticated component stream. It implements
// contract.Transport for the dispatcher and answers service discovery
// itself, since advertisement is static and never touches room state.
type Component struct {
	log     *slog.Logger
	name    domain.Address
	conn    net.Conn
	dec     *xml.Decoder
	writeMu sync.Mutex
}

// Dial connects and authenticates. The returned component is ready to Serve.
func Dial(ctx context.Context, log *slog.Logger, opts Options) (*Component, error) {
	name, err := domain.ParseAddress(opts.ComponentName)
	if err != nil {
		return nil, fmt.Errorf("component name: %w", err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, err
	}

	c := &Component{log: log, name: name, conn: conn, dec: xml.NewDecoder(conn)}
	if err := c.handshake(opts); err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Info("Component stream established", "component", opts.ComponentName, "server", opts.Host)
	return c, nil
}

// handshake opens the stream and answers the server's stream id with
// hex(sha1(id + secret)).
func (c *Component) handshake(opts Options) error {
	_, err := fmt.Fprintf(c.conn,
		`<?xml version='1.0'?><stream:stream xmlns=%q xmlns:stream=%q to=%q>`,
		stanza.NSComponentAccept, stanza.NSStream, opts.ComponentName)
	if err != nil {
		return err
	}

	start, err := c.nextStart()
	if err != nil {
		return err
	}
	if start.Name.Local != "stream" {
		return fmt.Errorf("%w: unexpected stream header <%s>", errors.ErrHandshakeRejected, start.Name.Local)
	}
	streamID := attrValue(start, "id")

	if _, err := fmt.Fprintf(c.conn, "<handshake>%s</handshake>", HandshakeDigest(streamID, opts.SharedSecret)); err != nil {
		return err
	}

	reply, err := c.nextStart()
	if err != nil {
		return err
	}
	if reply.Name.Local != "handshake" {
		return fmt.Errorf("%w: got <%s>", errors.ErrHandshakeRejected, reply.Name.Local)
	}
	return c.dec.Skip()
}

// HandshakeDigest computes the component authentication digest for a stream id.
func HandshakeDigest(streamID, secret string) string {
	sum := sha1.Sum([]byte(streamID + secret))
	return hex.EncodeToString(sum[:])
}

// Serve decodes inbound stanzas until the stream or the context ends.
// Messages and presences go to the handler; IQs are answered here.
func (c *Component) Serve(ctx context.Context, handler contract.EventHandler) error {
	// Closing the connection is the only way to unblock the decoder.
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		tok, err := c.dec.Token()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", errors.ErrStreamClosed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := c.dispatch(t, handler); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: %v", errors.ErrStreamClosed, err)
			}
		case xml.EndElement:
			if t.Name.Local == "stream" {
				return errors.ErrStreamClosed
			}
		}
	}
}

func (c *Component) dispatch(start xml.StartElement, handler contract.EventHandler) error {
	switch start.Name.Local {
	case "message":
		msg, err := stanza.DecodeMessage(c.dec, start)
		if err != nil {
			return err
		}
		handler.OnMessage(msg)
	case "presence":
		p, err := stanza.DecodePresence(c.dec, start)
		if err != nil {
			return err
		}
		handler.OnPresence(p)
	case "iq":
		iq, err := stanza.DecodeIQ(c.dec, start)
		if err != nil {
			return err
		}
		c.handleIQ(iq)
	case "error":
		return fmt.Errorf("stream error from server")
	default:
		c.log.Debug("Skipping unknown stream element", "name", start.Name.Local)
		return c.dec.Skip()
	}
	return nil
}

// SendMessage implements contract.Transport.
func (c *Component) SendMessage(msg stanza.Message) error {
	out, err := msg.XML()
	if err != nil {
		return err
	}
	return c.write(out)
}

// SendPresence implements contract.Transport.
func (c *Component) SendPresence(p stanza.Presence) error {
	out, err := p.XML()
	if err != nil {
		return err
	}
	return c.write(out)
}

func (c *Component) write(out []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(out)
	return err
}

func (c *Component) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, _ = c.conn.Write([]byte("</stream:stream>"))
	return c.conn.Close()
}

func (c *Component) nextStart() (xml.StartElement, error) {
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func attrValue(se xml.StartElement, name string) string {
	for _, attr := range se.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
