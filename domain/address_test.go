package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"muc-lab/errors"
)

func TestParseAddress_FullAddress(t *testing.T) {
	req := require.New(t)

	addr, err := ParseAddress("alice@example.org/tablet")

	req.NoError(err)
	req.Equal("alice", addr.Local)
	req.Equal("example.org", addr.Domain)
	req.Equal("tablet", addr.Resource)
	req.Equal("alice@example.org/tablet", addr.String())
}

func TestParseAddress_BareAndDomain(t *testing.T) {
	req := require.New(t)

	bare, err := ParseAddress("lobby@muc.example.org")
	req.NoError(err)
	req.True(bare.IsBare())
	req.False(bare.IsDomain())

	service, err := ParseAddress("muc.example.org")
	req.NoError(err)
	req.True(service.IsDomain())
	req.Equal("muc.example.org", service.String())
}

func TestParseAddress_Malformed(t *testing.T) {
	req := require.New(t)

	for _, raw := range []string{"", "@example.org", "@"} {
		_, err := ParseAddress(raw)
		req.ErrorIs(err, errors.ErrMalformedAddress, raw)
	}
}

func TestAddress_BareComparisonIgnoresSession(t *testing.T) {
	req := require.New(t)

	// Given two sessions of the same identity
	s1 := MustParseAddress("alice@example.org/s1")
	s2 := MustParseAddress("alice@example.org/s2")

	// Then they share one bare identity
	req.True(s1.EqualBare(s2))
	req.Equal(s1.Bare(), s2.Bare())

	// And a different identity does not
	bob := MustParseAddress("bob@example.org/s1")
	req.False(s1.EqualBare(bob))
}

func TestAddress_WithResource(t *testing.T) {
	req := require.New(t)

	room := MustParseAddress("lobby@muc.example.org")
	occupant := room.WithResource("alice")

	req.Equal("lobby@muc.example.org/alice", occupant.String())
	// The original value is untouched
	req.True(room.IsBare())
}
