// Package domain contains core concepts of the occupancy system.
// This file defines Address values and bare/session semantics.
// No runtime, network, or wire logic should be added here.
package domain

import (
	"fmt"
	"strings"

	"muc-lab/errors"
)

// Address is a two-part identifier: a bare part naming an identity
// (local@domain, or just domain for a service) and an optional session
// resource naming one connected client of that identity.
type Address struct {
	Local    string
	Domain   string
	Resource string
}

// ParseAddress parses "local@domain/resource" with local and resource optional.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", errors.ErrMalformedAddress)
	}
	bare, resource, _ := strings.Cut(s, "/")
	local, dom, hasLocal := strings.Cut(bare, "@")
	if !hasLocal {
		dom = bare
		local = ""
	}
	if dom == "" || (hasLocal && local == "") {
		return Address{}, fmt.Errorf("%w: %q", errors.ErrMalformedAddress, s)
	}
	return Address{Local: local, Domain: dom, Resource: resource}, nil
}

// MustParseAddress is ParseAddress for fixtures and wiring known at compile time.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Bare strips the session resource. All sessions of one occupant share it.
func (a Address) Bare() Address {
	a.Resource = ""
	return a
}

func (a Address) IsBare() bool {
	return a.Resource == ""
}

// IsDomain reports whether the address names a service rather than an
// identity or a room (no local part).
func (a Address) IsDomain() bool {
	return a.Local == ""
}

// WithResource returns the address qualified by a session resource.
func (a Address) WithResource(resource string) Address {
	a.Resource = resource
	return a
}

// EqualBare compares identities, ignoring session resources.
func (a Address) EqualBare(other Address) bool {
	return a.Local == other.Local && a.Domain == other.Domain
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	var b strings.Builder
	if a.Local != "" {
		b.WriteString(a.Local)
		b.WriteByte('@')
	}
	b.WriteString(a.Domain)
	if a.Resource != "" {
		b.WriteByte('/')
		b.WriteString(a.Resource)
	}
	return b.String()
}
