package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"muc-lab/domain"
	"muc-lab/errors"
)

func TestRegistry_GetOrCreate_OneStatePerRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	room := domain.MustParseAddress("lobby@muc.example.org")

	// When the same room is referenced twice, with and without a resource
	first := registry.GetOrCreate(room)
	second := registry.GetOrCreate(room.WithResource("alice"))

	// Then both references observe one RoomState
	req.Same(first, second)
	req.Len(registry.Rooms(), 1)
}

func TestRegistry_GetOrCreate_AtomicUnderRacingFirstJoins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	room := domain.MustParseAddress("lobby@muc.example.org")

	// When many goroutines reference the room for the first time
	states := make([]*domain.RoomState, 64)
	var wg sync.WaitGroup
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = registry.GetOrCreate(room)
		}(i)
	}
	wg.Wait()

	// Then exactly one RoomState was created
	for _, state := range states {
		req.Same(states[0], state)
	}
	req.Len(registry.Rooms(), 1)
}

func TestRegistry_Get_UnknownRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	_, err := registry.Get(domain.MustParseAddress("nowhere@muc.example.org"))

	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRegistry_RoomsSurviveEmptyRosters(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	room := domain.MustParseAddress("lobby@muc.example.org")
	session := domain.MustParseAddress("alice@example.org/s1")

	// Given a room whose only occupant left again
	state := registry.GetOrCreate(room)
	_, err := state.Join(session, "alice")
	req.NoError(err)
	req.True(state.Leave(session, "alice").Removed)

	// Then the room is still registered (rooms are process-lifetime)
	got, err := registry.Get(room)
	req.NoError(err)
	req.Same(state, got)
	req.Empty(got.Participants())
}

func TestRegistry_RoomsAreIndependent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	lobby := registry.GetOrCreate(domain.MustParseAddress("lobby@muc.example.org"))
	den := registry.GetOrCreate(domain.MustParseAddress("den@muc.example.org"))

	// The same nick may exist in two rooms
	_, err := lobby.Join(domain.MustParseAddress("alice@example.org/s1"), "alice")
	req.NoError(err)
	_, err = den.Join(domain.MustParseAddress("bob@example.org/s1"), "alice")
	req.NoError(err)

	req.Len(registry.Rooms(), 2)
}
