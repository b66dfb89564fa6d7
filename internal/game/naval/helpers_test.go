package naval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func xy(x, y int) Coordinate { return Coordinate{X: x, Y: y} }

type shipSpec struct {
	typ        ShipType
	at         Coordinate
	horizontal bool
}

// defaultFleet keeps rows 3 and below empty.
var defaultFleet = []shipSpec{
	{Carrier, xy(0, 0), true},
	{Battleship, xy(0, 1), true},
	{Corvette, xy(0, 2), true},
}

var (
	aliceMines = []Coordinate{xy(7, 7), xy(6, 7)}
	bobMines   = []Coordinate{xy(7, 5), xy(6, 5)}
)

func newTestMatch(t *testing.T) *Match {
	t.Helper()
	m := NewMatch("TEST", WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, m.Join("alice"))
	require.NoError(t, m.Join("bob"))
	return m
}

func deploy(t *testing.T, m *Match, id string, fleet []shipSpec, mines []Coordinate) {
	t.Helper()
	for _, s := range fleet {
		require.NoError(t, m.PlaceShip(id, s.typ, s.at, s.horizontal), "place %s", s.typ)
	}
	for _, c := range mines {
		require.NoError(t, m.PlaceMine(id, c), "mine %v", c)
	}
}

// startCombat deploys both fleets and readies both players.
func startCombat(t *testing.T, aliceFleet []shipSpec, aMines []Coordinate, bobFleet []shipSpec, bMines []Coordinate) *Match {
	t.Helper()
	m := newTestMatch(t)
	deploy(t, m, "alice", aliceFleet, aMines)
	deploy(t, m, "bob", bobFleet, bMines)
	require.NoError(t, m.SetReady("alice"))
	require.NoError(t, m.SetReady("bob"))
	require.Equal(t, PhaseCombat, m.Phase())
	return m
}

func defaultCombat(t *testing.T) *Match {
	t.Helper()
	return startCombat(t, defaultFleet, aliceMines, defaultFleet, bobMines)
}

func player(t *testing.T, m *Match, id string) *Player {
	t.Helper()
	p, ok := m.Player(id)
	require.True(t, ok, "player %s", id)
	return p
}

func shipOfType(t *testing.T, ships []Ship, typ ShipType) Ship {
	t.Helper()
	for _, s := range ships {
		if s.Type == typ {
			return s
		}
	}
	t.Fatalf("no %s in fleet", typ)
	return Ship{}
}
