package naval

// Mark is what a client draws in one grid cell.
type Mark string

const (
	MarkHidden        Mark = "HIDDEN"
	MarkEmpty         Mark = "EMPTY"
	MarkShip          Mark = "SHIP"
	MarkMine          Mark = "MINE"
	MarkHit           Mark = "HIT"
	MarkMiss          Mark = "MISS"
	MarkRevealedShip  Mark = "REVEALED_SHIP"
	MarkRevealedEmpty Mark = "REVEALED_EMPTY"
	MarkRevealedMine  Mark = "REVEALED_MINE"
)

// View is one viewer's picture of the match.
type View struct {
	ID        string                `json:"id"`
	Status    Phase                 `json:"status"`
	Viewer    string                `json:"viewer"`
	Players   map[string]PlayerView `json:"players"`
	Turn      string                `json:"turn"`
	TurnCount int                   `json:"turnCount"`
	Winner    string                `json:"winner,omitempty"`
}

// PlayerView is one side of the match as seen by the viewer. Grid is the
// player's own board: drawn from the truth for the viewer, and only from
// the viewer's intel for the opponent.
type PlayerView struct {
	ID             string         `json:"id"`
	Ships          []Ship         `json:"ships"`
	RemainingMines int            `json:"remainingMines"`
	PlacedMines    []Coordinate   `json:"placedMines,omitempty"`
	Hits           []Coordinate   `json:"hits"`
	Misses         []Coordinate   `json:"misses"`
	RevealedCells  []RevealedCell `json:"revealedCells"`
	AP             int            `json:"ap"`
	Ready          bool           `json:"isReady"`
	Grid           [][]Mark       `json:"grid"`
}

// View builds the redacted snapshot for one viewer. It is rebuilt on every
// call and never shared between viewers.
func (m *Match) View(viewerID string) View {
	v := View{
		ID:        m.id,
		Status:    m.phase,
		Viewer:    viewerID,
		Players:   make(map[string]PlayerView, len(m.players)),
		Turn:      m.turn,
		TurnCount: m.turnCount,
		Winner:    m.winner,
	}
	viewer := m.players[viewerID]
	for id, p := range m.players {
		if id == viewerID {
			v.Players[id] = ownView(p)
		} else {
			v.Players[id] = opponentView(p, viewer)
		}
	}
	return v
}

func ownView(p *Player) PlayerView {
	return PlayerView{
		ID:             p.ID,
		Ships:          p.Ships(),
		RemainingMines: p.minesLeft,
		PlacedMines:    p.PlacedMines(),
		Hits:           p.Hits(),
		Misses:         p.Misses(),
		RevealedCells:  p.Revealed(),
		AP:             p.ap,
		Ready:          p.ready,
		Grid:           ownGrid(p.board),
	}
}

// opponentView hides unsunk ship positions and every mine. viewer may be
// nil for a spectator, who sees no marks at all.
func opponentView(p, viewer *Player) PlayerView {
	ships := p.Ships()
	for i := range ships {
		if !ships[i].Sunk {
			ships[i].Cells = []Coordinate{}
			ships[i].Hits = []Coordinate{}
		}
	}
	return PlayerView{
		ID:             p.ID,
		Ships:          ships,
		RemainingMines: p.minesLeft,
		Hits:           p.Hits(),
		Misses:         p.Misses(),
		RevealedCells:  p.Revealed(),
		AP:             p.ap,
		Ready:          p.ready,
		Grid:           intelGrid(viewer),
	}
}

func newGrid(fill Mark) [][]Mark {
	g := make([][]Mark, GridSize)
	for y := range g {
		g[y] = make([]Mark, GridSize)
		for x := range g[y] {
			g[y][x] = fill
		}
	}
	return g
}

func ownGrid(b *Board) [][]Mark {
	g := newGrid(MarkEmpty)
	for y := range b.grid {
		for x, cl := range b.grid[y] {
			switch {
			case cl.vis == Hit:
				g[y][x] = MarkHit
			case cl.vis == Miss:
				g[y][x] = MarkMiss
			case cl.vis == RevealedMine && !cl.hasMine:
				g[y][x] = MarkRevealedMine
			case cl.shipID != "":
				g[y][x] = MarkShip
			case cl.hasMine:
				g[y][x] = MarkMine
			}
		}
	}
	return g
}

func intelGrid(viewer *Player) [][]Mark {
	g := newGrid(MarkHidden)
	if viewer == nil {
		return g
	}
	for _, rc := range viewer.revealed {
		g[rc.Y][rc.X] = Mark(rc.Status)
	}
	for _, c := range viewer.misses {
		g[c.Y][c.X] = MarkMiss
	}
	for _, c := range viewer.hits {
		g[c.Y][c.X] = MarkHit
	}
	return g
}
