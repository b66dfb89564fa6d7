package naval

import "fmt"

type cell struct {
	shipID  string
	vis     Visibility
	hasMine bool
}

type shipRecord struct {
	id    string
	typ   ShipType
	cells []Coordinate
	hits  map[Coordinate]bool
	sunk  bool
}

// Ship is a read-only snapshot of a placed ship.
type Ship struct {
	ID    string       `json:"id"`
	Type  ShipType     `json:"type"`
	Size  int          `json:"size"`
	Cells []Coordinate `json:"position"`
	Hits  []Coordinate `json:"hits"`
	Sunk  bool         `json:"isSunk"`
}

// ShipState is the damage summary the board keeps for a ship.
type ShipState struct {
	Hits int
	Sunk bool
}

// CellInfo is the full, unredacted content of one cell.
type CellInfo struct {
	Visibility Visibility
	ShipID     string
	HasMine    bool
}

// CellOutcome is the resolution of damage applied to a single cell.
type CellOutcome struct {
	Coordinate
	Result Result `json:"result"`
	ShipID string `json:"shipId,omitempty"`
}

// AttackOutcome lists every cell an attack touched. Cells[0] is the
// attacked cell; a mine explosion appends its orthogonal neighbours.
type AttackOutcome struct {
	Cells        []CellOutcome `json:"cells"`
	MineExploded bool          `json:"mineExploded"`
}

// Primary returns the outcome for the attacked cell.
func (o AttackOutcome) Primary() CellOutcome {
	return o.Cells[0]
}

// Board is one player's grid. It is the single source of truth for ship
// damage: hit sets and sunk flags live here, keyed by ship id.
type Board struct {
	grid  [GridSize][GridSize]cell // [y][x]
	ships []*shipRecord            // placement order
}

func NewBoard() *Board {
	b := &Board{}
	for y := range b.grid {
		for x := range b.grid[y] {
			b.grid[y][x].vis = Hidden
		}
	}
	return b
}

func (b *Board) at(c Coordinate) *cell {
	return &b.grid[c.Y][c.X]
}

func shipCells(start Coordinate, size int, horizontal bool) []Coordinate {
	coords := make([]Coordinate, size)
	for i := range coords {
		if horizontal {
			coords[i] = start.offset(i, 0)
		} else {
			coords[i] = start.offset(0, i)
		}
	}
	return coords
}

// PlaceShip puts a ship of the given type on the board. Cells held by an
// existing ship of the same type count as free: that ship is replaced only
// if the new placement is valid.
func (b *Board) PlaceShip(id string, typ ShipType, start Coordinate, horizontal bool) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: unknown ship type %q", ErrInvalidPlacement, typ)
	}
	replaced := ""
	if old := b.shipByType(typ); old != nil {
		replaced = old.id
	}
	coords := shipCells(start, typ.Size(), horizontal)
	for _, c := range coords {
		if !c.InBounds() {
			return fmt.Errorf("%w: %s %v out of bounds", ErrInvalidPlacement, typ, c)
		}
		cl := b.at(c)
		if cl.shipID != "" && cl.shipID != replaced {
			return fmt.Errorf("%w: %s overlaps a ship at %v", ErrInvalidPlacement, typ, c)
		}
		if cl.hasMine {
			return fmt.Errorf("%w: %s overlaps a mine at %v", ErrInvalidPlacement, typ, c)
		}
	}

	b.RemoveShipByType(typ)
	for _, c := range coords {
		b.at(c).shipID = id
	}
	b.ships = append(b.ships, &shipRecord{
		id:    id,
		typ:   typ,
		cells: coords,
		hits:  make(map[Coordinate]bool),
	})
	return nil
}

// PlaceMine arms a mine on an empty cell.
func (b *Board) PlaceMine(c Coordinate) error {
	if !c.InBounds() {
		return fmt.Errorf("%w: mine %v out of bounds", ErrInvalidPlacement, c)
	}
	cl := b.at(c)
	if cl.hasMine {
		return fmt.Errorf("%w: mine already at %v", ErrInvalidPlacement, c)
	}
	if cl.shipID != "" {
		return fmt.Errorf("%w: ship at %v", ErrInvalidPlacement, c)
	}
	cl.hasMine = true
	return nil
}

// RemoveShipByType clears the cells of the ship of that type, if any.
func (b *Board) RemoveShipByType(typ ShipType) bool {
	for i, s := range b.ships {
		if s.typ != typ {
			continue
		}
		for _, c := range s.cells {
			cl := b.at(c)
			cl.shipID = ""
			cl.vis = Hidden
		}
		b.ships = append(b.ships[:i], b.ships[i+1:]...)
		return true
	}
	return false
}

// resolved reports whether the cell is in a terminal state. A revealed
// mine is terminal only once it has gone off.
func (cl *cell) resolved() bool {
	switch cl.vis {
	case Hit, Miss:
		return true
	case RevealedMine:
		return !cl.hasMine
	}
	return false
}

// Resolved reports whether attacking c would be a no-op. Out-of-bounds
// coordinates are never resolved.
func (b *Board) Resolved(c Coordinate) bool {
	return c.InBounds() && b.at(c).resolved()
}

// Obstructed reports whether c still holds something a torpedo would strike:
// an unresolved ship cell or an armed mine.
func (b *Board) Obstructed(c Coordinate) bool {
	if !c.InBounds() {
		return false
	}
	cl := b.at(c)
	return !cl.resolved() && (cl.shipID != "" || cl.hasMine)
}

// ReceiveAttack is the only entry point for damage. Attacking a resolved
// cell returns its previous result again without applying damage.
func (b *Board) ReceiveAttack(c Coordinate) AttackOutcome {
	if !c.InBounds() {
		return AttackOutcome{Cells: []CellOutcome{{Coordinate: c, Result: ResultMiss}}}
	}
	cl := b.at(c)
	if cl.resolved() {
		return AttackOutcome{Cells: []CellOutcome{b.previous(c)}}
	}
	if cl.hasMine {
		return AttackOutcome{Cells: b.Explode(c), MineExploded: true}
	}
	return AttackOutcome{Cells: []CellOutcome{b.damage(c)}}
}

// Explode disarms any mine at c and damages c and its four orthogonal
// neighbours. Neighbouring mines do not go off. The center is left as a
// spent mine.
func (b *Board) Explode(c Coordinate) []CellOutcome {
	if !c.InBounds() {
		return nil
	}
	b.at(c).hasMine = false
	targets := []Coordinate{c, c.offset(0, -1), c.offset(0, 1), c.offset(-1, 0), c.offset(1, 0)}
	out := make([]CellOutcome, 0, len(targets))
	for _, t := range targets {
		if t.InBounds() {
			out = append(out, b.damage(t))
		}
	}
	if center := b.at(c); center.shipID == "" {
		center.vis = RevealedMine
	}
	return out
}

func (b *Board) damage(c Coordinate) CellOutcome {
	cl := b.at(c)
	if cl.resolved() {
		return b.previous(c)
	}
	if cl.shipID == "" {
		cl.vis = Miss
		return CellOutcome{Coordinate: c, Result: ResultMiss}
	}
	s := b.ship(cl.shipID)
	if s == nil {
		panic(fmt.Sprintf("naval: cell %v references unknown ship %s", c, cl.shipID))
	}
	cl.vis = Hit
	s.hits[c] = true
	wasSunk := s.sunk
	s.sunk = len(s.hits) >= len(s.cells)
	res := ResultHit
	if s.sunk && !wasSunk {
		res = ResultSunk
	}
	return CellOutcome{Coordinate: c, Result: res, ShipID: s.id}
}

func (b *Board) previous(c Coordinate) CellOutcome {
	cl := b.at(c)
	if cl.vis == Hit {
		return CellOutcome{Coordinate: c, Result: ResultHit, ShipID: cl.shipID}
	}
	return CellOutcome{Coordinate: c, Result: ResultMiss}
}

// Reveal exposes a cell without damaging it. Mines are detected but not
// consumed. Resolved and already revealed cells keep their state.
func (b *Board) Reveal(c Coordinate) Visibility {
	if !c.InBounds() {
		return Miss
	}
	cl := b.at(c)
	if cl.vis != Hidden {
		return cl.vis
	}
	switch {
	case cl.hasMine:
		cl.vis = RevealedMine
	case cl.shipID != "":
		cl.vis = RevealedShip
	default:
		cl.vis = RevealedEmpty
	}
	return cl.vis
}

// Cell returns the content of c. Out-of-bounds reads look like a miss.
func (b *Board) Cell(c Coordinate) CellInfo {
	if !c.InBounds() {
		return CellInfo{Visibility: Miss}
	}
	cl := b.at(c)
	return CellInfo{Visibility: cl.vis, ShipID: cl.shipID, HasMine: cl.hasMine}
}

func (b *Board) HasMine(c Coordinate) bool {
	return c.InBounds() && b.at(c).hasMine
}

// ConsumeMine disarms the mine at c and reports whether one was there.
func (b *Board) ConsumeMine(c Coordinate) bool {
	if !b.HasMine(c) {
		return false
	}
	b.at(c).hasMine = false
	return true
}

// Misses lists missed cells in row-major order.
func (b *Board) Misses() []Coordinate {
	var misses []Coordinate
	for y := range b.grid {
		for x := range b.grid[y] {
			if b.grid[y][x].vis == Miss {
				misses = append(misses, Coordinate{X: x, Y: y})
			}
		}
	}
	return misses
}

func (b *Board) ShipState(id string) (ShipState, bool) {
	s := b.ship(id)
	if s == nil {
		return ShipState{}, false
	}
	return ShipState{Hits: len(s.hits), Sunk: s.sunk}, true
}

// ShipAt returns the ship occupying c, if any.
func (b *Board) ShipAt(c Coordinate) (Ship, bool) {
	if !c.InBounds() {
		return Ship{}, false
	}
	s := b.ship(b.at(c).shipID)
	if s == nil {
		return Ship{}, false
	}
	return s.snapshot(), true
}

// Ships returns snapshots of every placed ship in placement order.
func (b *Board) Ships() []Ship {
	ships := make([]Ship, 0, len(b.ships))
	for _, s := range b.ships {
		ships = append(ships, s.snapshot())
	}
	return ships
}

func (b *Board) ship(id string) *shipRecord {
	if id == "" {
		return nil
	}
	for _, s := range b.ships {
		if s.id == id {
			return s
		}
	}
	return nil
}

func (b *Board) shipByType(typ ShipType) *shipRecord {
	for _, s := range b.ships {
		if s.typ == typ {
			return s
		}
	}
	return nil
}

func (s *shipRecord) snapshot() Ship {
	hits := make([]Coordinate, 0, len(s.hits))
	for _, c := range s.cells {
		if s.hits[c] {
			hits = append(hits, c)
		}
	}
	return Ship{
		ID:    s.id,
		Type:  s.typ,
		Size:  len(s.cells),
		Cells: append([]Coordinate(nil), s.cells...),
		Hits:  hits,
		Sunk:  s.sunk,
	}
}
