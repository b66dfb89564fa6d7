package naval

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// RevealedCell is one piece of intel a player holds on the opponent's grid.
type RevealedCell struct {
	Coordinate
	Status Visibility `json:"status"`
}

// DamageEvent reports a ship struck by an opponent's pre-combat mine.
type DamageEvent struct {
	Coordinate
	Result Result `json:"result"`
	ShipID string `json:"shipId,omitempty"`
}

// Player is one side of a match: a board, a mine budget, an action-point
// pool and the history of shots fired at the opponent.
type Player struct {
	ID string

	board       *Board
	minesLeft   int
	placedMines []Coordinate
	ap          int
	ready       bool

	hits     []Coordinate
	misses   []Coordinate
	revealed []RevealedCell

	newShipID func() string
}

func NewPlayer(id string) *Player {
	return &Player{
		ID:        id,
		board:     NewBoard(),
		minesLeft: MinesPerPlayer,
		ap:        StartingAP,
		newShipID: uuid.NewString,
	}
}

func (p *Player) Board() *Board  { return p.board }
func (p *Player) AP() int        { return p.ap }
func (p *Player) Ready() bool    { return p.ready }
func (p *Player) MinesLeft() int { return p.minesLeft }

// Ships is derived from the board on every call.
func (p *Player) Ships() []Ship {
	return p.board.Ships()
}

// PlaceShip places or re-places the ship of the given type.
func (p *Player) PlaceShip(typ ShipType, start Coordinate, horizontal bool) error {
	if p.board.shipByType(typ) == nil && len(p.board.ships) >= ShipsPerPlayer {
		return fmt.Errorf("%w: fleet already has %d ships", ErrInvalidPlacement, ShipsPerPlayer)
	}
	return p.board.PlaceShip(p.newShipID(), typ, start, horizontal)
}

func (p *Player) PlaceMine(c Coordinate) error {
	if p.minesLeft <= 0 {
		return fmt.Errorf("%w: no mines left", ErrInvalidPlacement)
	}
	if err := p.board.PlaceMine(c); err != nil {
		return err
	}
	p.minesLeft--
	p.placedMines = append(p.placedMines, c)
	return nil
}

// PlacedMines returns the armed mines this player laid before combat.
func (p *Player) PlacedMines() []Coordinate {
	return slices.Clone(p.placedMines)
}

// SetReady locks the deployment. It requires exactly ShipsPerPlayer ships
// and MinesPerPlayer mines.
func (p *Player) SetReady() error {
	if len(p.board.ships) != ShipsPerPlayer || len(p.placedMines) != MinesPerPlayer {
		return fmt.Errorf("%w: %d/%d ships, %d/%d mines", ErrIncompleteDeployment,
			len(p.board.ships), ShipsPerPlayer, len(p.placedMines), MinesPerPlayer)
	}
	p.ready = true
	return nil
}

func (p *Player) SpendAP(cost int) bool {
	if cost < 0 || p.ap < cost {
		return false
	}
	p.ap -= cost
	return true
}

func (p *Player) RefundAP(cost int) {
	p.ap = min(p.ap+cost, MaxAP)
}

func (p *Player) RegenerateAP() {
	p.ap = min(p.ap+1, MaxAP)
}

// ReceiveAttack applies an attack to this player's board.
func (p *Player) ReceiveAttack(c Coordinate) AttackOutcome {
	return p.board.ReceiveAttack(c)
}

// CheckMines strikes every ship of this player that sits on one of the
// given opponent mine coordinates. The mines themselves belong to the
// opponent's board and are not touched here. A cell that was already struck
// is reported again with its standing result and takes no further damage.
func (p *Player) CheckMines(opponentMines []Coordinate) []DamageEvent {
	var events []DamageEvent
	for _, c := range opponentMines {
		if _, ok := p.board.ShipAt(c); !ok {
			continue
		}
		out := p.board.ReceiveAttack(c).Primary()
		events = append(events, DamageEvent{Coordinate: c, Result: out.Result, ShipID: out.ShipID})
	}
	return events
}

// dropMine removes c from the placed-mine list and disarms it on the board.
func (p *Player) dropMine(c Coordinate) bool {
	for i, m := range p.placedMines {
		if m == c {
			p.placedMines = append(p.placedMines[:i], p.placedMines[i+1:]...)
			p.board.ConsumeMine(c)
			return true
		}
	}
	return false
}

// HasAfloat reports whether the player owns an unsunk ship of the type.
func (p *Player) HasAfloat(typ ShipType) bool {
	s := p.board.shipByType(typ)
	return s != nil && !s.sunk
}

func (p *Player) AddHit(c Coordinate) {
	if !slices.Contains(p.hits, c) {
		p.hits = append(p.hits, c)
	}
}

func (p *Player) AddMiss(c Coordinate) {
	if !slices.Contains(p.misses, c) {
		p.misses = append(p.misses, c)
	}
}

// Reveal records intel on the opponent's grid; a later reveal of the same
// cell overwrites the earlier one.
func (p *Player) Reveal(c Coordinate, status Visibility) {
	for i := range p.revealed {
		if p.revealed[i].Coordinate == c {
			p.revealed[i].Status = status
			return
		}
	}
	p.revealed = append(p.revealed, RevealedCell{Coordinate: c, Status: status})
}

func (p *Player) Hits() []Coordinate       { return slices.Clone(p.hits) }
func (p *Player) Misses() []Coordinate     { return slices.Clone(p.misses) }
func (p *Player) Revealed() []RevealedCell { return slices.Clone(p.revealed) }

// HasLost is true once every placed ship is sunk.
func (p *Player) HasLost() bool {
	if len(p.board.ships) == 0 {
		return false
	}
	for _, s := range p.board.ships {
		if !s.sunk {
			return false
		}
	}
	return true
}
