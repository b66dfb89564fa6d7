package naval

import "fmt"

const (
	GridSize       = 8
	ShipsPerPlayer = 3
	MinesPerPlayer = 2
	MaxAP          = 6
	StartingAP     = 1

	// AttackAPCost is charged for a standard attack. Attacks are free and
	// always pass the turn once resolved.
	AttackAPCost = 0
)

// Coordinate addresses one cell; X is the column and Y the row.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InBounds reports whether c lies on the grid.
func (c Coordinate) InBounds() bool {
	return c.X >= 0 && c.X < GridSize && c.Y >= 0 && c.Y < GridSize
}

func (c Coordinate) offset(dx, dy int) Coordinate {
	return Coordinate{X: c.X + dx, Y: c.Y + dy}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// ShipType names one of the five hull classes.
type ShipType string

const (
	Carrier    ShipType = "Carrier"
	Battleship ShipType = "Battleship"
	Destroyer  ShipType = "Destroyer"
	Submarine  ShipType = "Submarine"
	Corvette   ShipType = "Corvette"
)

// ShipTypes lists every hull class, largest first.
var ShipTypes = []ShipType{Carrier, Battleship, Destroyer, Submarine, Corvette}

// Size returns the number of cells the hull occupies, or 0 for an unknown type.
func (t ShipType) Size() int {
	switch t {
	case Carrier:
		return 5
	case Battleship:
		return 4
	case Destroyer, Submarine:
		return 3
	case Corvette:
		return 2
	default:
		return 0
	}
}

func (t ShipType) Valid() bool {
	return t.Size() > 0
}

// Visibility is what is publicly known about a cell.
type Visibility string

const (
	Hidden        Visibility = "HIDDEN"
	Hit           Visibility = "HIT"
	Miss          Visibility = "MISS"
	RevealedShip  Visibility = "REVEALED_SHIP"
	RevealedEmpty Visibility = "REVEALED_EMPTY"
	RevealedMine  Visibility = "REVEALED_MINE"
)

// Result is the damage outcome for one cell.
type Result string

const (
	ResultMiss Result = "MISS"
	ResultHit  Result = "HIT"
	ResultSunk Result = "SUNK"
)

// Damaging reports whether the result landed on a ship.
func (r Result) Damaging() bool {
	return r == ResultHit || r == ResultSunk
}

// Phase is the match lifecycle stage.
type Phase string

const (
	PhaseWaiting   Phase = "Waiting"
	PhasePlacement Phase = "Placement"
	PhaseCombat    Phase = "Combat"
	PhaseFinished  Phase = "Finished"
)
