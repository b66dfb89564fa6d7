package naval

import (
	"fmt"
	"math/rand"
	"time"
)

// Match is the two-player state machine. It is not safe for concurrent use:
// callers run every command for one match on a single goroutine.
type Match struct {
	id        string
	order     []string // join order; order[0] takes the first turn
	players   map[string]*Player
	phase     Phase
	turn      string
	turnCount int
	winner    string
	rng       *rand.Rand
}

type Option func(*Match)

// WithRand injects the random source used by random skills.
func WithRand(r *rand.Rand) Option {
	return func(m *Match) { m.rng = r }
}

func NewMatch(id string, opts ...Option) *Match {
	m := &Match{
		id:      id,
		players: make(map[string]*Player),
		phase:   PhaseWaiting,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m
}

func (m *Match) ID() string     { return m.id }
func (m *Match) Phase() Phase   { return m.phase }
func (m *Match) Turn() string   { return m.turn }
func (m *Match) TurnCount() int { return m.turnCount }
func (m *Match) Started() bool  { return m.phase != PhaseWaiting }
func (m *Match) IsOver() bool   { return m.phase == PhaseFinished }
func (m *Match) Winner() string { return m.winner }

func (m *Match) PlayerIDs() []string {
	return append([]string(nil), m.order...)
}

func (m *Match) Player(id string) (*Player, bool) {
	p, ok := m.players[id]
	return p, ok
}

func (m *Match) opponent(id string) *Player {
	for _, pid := range m.order {
		if pid != id {
			return m.players[pid]
		}
	}
	return nil
}

// Join seats a player. The second join moves the match to placement.
func (m *Match) Join(playerID string) error {
	if _, ok := m.players[playerID]; ok {
		return nil
	}
	if len(m.players) >= 2 {
		return ErrMatchFull
	}
	if m.phase != PhaseWaiting {
		return fmt.Errorf("%w: join during %s", ErrWrongPhase, m.phase)
	}
	m.players[playerID] = NewPlayer(playerID)
	m.order = append(m.order, playerID)
	if len(m.order) == 2 {
		m.phase = PhasePlacement
		m.turn = m.order[0]
	}
	return nil
}

func (m *Match) deploying(playerID string) (*Player, error) {
	if m.phase != PhasePlacement {
		return nil, fmt.Errorf("%w: placement during %s", ErrWrongPhase, m.phase)
	}
	p, ok := m.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p.ready {
		return nil, ErrAlreadyReady
	}
	return p, nil
}

func (m *Match) PlaceShip(playerID string, typ ShipType, start Coordinate, horizontal bool) error {
	p, err := m.deploying(playerID)
	if err != nil {
		return err
	}
	return p.PlaceShip(typ, start, horizontal)
}

func (m *Match) PlaceMine(playerID string, c Coordinate) error {
	p, err := m.deploying(playerID)
	if err != nil {
		return err
	}
	return p.PlaceMine(c)
}

// SetReady locks a player's deployment. Once both players are ready the
// pre-combat traps resolve and combat begins.
func (m *Match) SetReady(playerID string) error {
	p, err := m.deploying(playerID)
	if err != nil {
		return err
	}
	if err := p.SetReady(); err != nil {
		return err
	}
	for _, other := range m.players {
		if !other.ready {
			return nil
		}
	}
	m.beginCombat()
	return nil
}

func (m *Match) beginCombat() {
	a, b := m.players[m.order[0]], m.players[m.order[1]]
	m.resolveCollisions(a, b)
	m.springTraps(a, b)
	m.springTraps(b, a)

	m.phase = PhaseCombat
	m.turn = m.order[0]
	m.turnCount = 1

	switch aLost, bLost := a.HasLost(), b.HasLost(); {
	case aLost && bLost:
		m.finish("")
	case aLost:
		m.finish(b.ID)
	case bLost:
		m.finish(a.ID)
	}
}

// resolveCollisions detonates every pair of mines both players laid on the
// same coordinate. Each mine blows up on its opponent's board.
func (m *Match) resolveCollisions(a, b *Player) {
	for _, c := range a.PlacedMines() {
		if !b.board.HasMine(c) {
			continue
		}
		a.dropMine(c)
		b.dropMine(c)
		m.credit(a, c, AttackOutcome{Cells: b.board.Explode(c), MineExploded: true})
		m.credit(b, c, AttackOutcome{Cells: a.board.Explode(c), MineExploded: true})
	}
}

// springTraps fires owner's remaining mines at any victim ship sitting on
// the same coordinate. A mine that strikes is spent.
func (m *Match) springTraps(owner, victim *Player) {
	for _, ev := range victim.CheckMines(owner.PlacedMines()) {
		owner.dropMine(ev.Coordinate)
		if ev.Result.Damaging() {
			owner.AddHit(ev.Coordinate)
		}
		owner.Reveal(ev.Coordinate, RevealedMine)
	}
}

// SwitchTurn passes the turn to the other player, who regains one action
// point. It does nothing outside combat.
func (m *Match) SwitchTurn() {
	if m.phase != PhaseCombat {
		return
	}
	next := m.opponent(m.turn)
	m.turn = next.ID
	next.RegenerateAP()
	if next.ID == m.order[0] {
		m.turnCount++
	}
}

func (m *Match) acting(playerID string) (attacker, defender *Player, err error) {
	if m.phase != PhaseCombat {
		return nil, nil, fmt.Errorf("%w: combat command during %s", ErrWrongPhase, m.phase)
	}
	attacker, ok := m.players[playerID]
	if !ok {
		return nil, nil, ErrUnknownPlayer
	}
	if m.turn != playerID {
		return nil, nil, ErrNotYourTurn
	}
	return attacker, m.opponent(playerID), nil
}

// Attack fires a standard shot. On success the turn passes unless the shot
// ended the match.
func (m *Match) Attack(playerID string, c Coordinate) (AttackOutcome, error) {
	attacker, defender, err := m.acting(playerID)
	if err != nil {
		return AttackOutcome{}, err
	}
	if !c.InBounds() {
		return AttackOutcome{}, fmt.Errorf("%w: %v", ErrOutOfBounds, c)
	}
	if defender.board.Resolved(c) {
		return AttackOutcome{}, fmt.Errorf("%w: %v", ErrAlreadyResolved, c)
	}
	if !attacker.SpendAP(AttackAPCost) {
		return AttackOutcome{}, ErrInsufficientAP
	}

	out := defender.ReceiveAttack(c)
	m.credit(attacker, c, out)
	if !m.checkWinner(attacker, defender) {
		m.SwitchTurn()
	}
	return out, nil
}

// UseSkill spends action points on a skill. It does not pass the turn; the
// caller calls SwitchTurn unless the skill ended the match.
func (m *Match) UseSkill(playerID string, skill Skill, target Coordinate) error {
	attacker, defender, err := m.acting(playerID)
	if err != nil {
		return err
	}
	cfg, ok := LookupSkill(skill)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSkill, skill)
	}
	if cfg.Pattern != PatternGlobalRandom && !target.InBounds() {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, target)
	}
	if !attacker.SpendAP(cfg.Cost) {
		return fmt.Errorf("%w: %s costs %d, have %d", ErrInsufficientAP, skill, cfg.Cost, attacker.ap)
	}
	if !attacker.HasAfloat(cfg.LinkedShip) {
		attacker.RefundAP(cfg.Cost)
		return fmt.Errorf("%w: %s needs a %s", ErrLinkedShipUnavailable, skill, cfg.LinkedShip)
	}

	resolvers[cfg.Pattern](m, attacker, defender, target)
	m.checkWinner(attacker, defender)
	return nil
}

// Forfeit ends a started match in the opponent's favour.
func (m *Match) Forfeit(playerID string) error {
	if m.phase != PhasePlacement && m.phase != PhaseCombat {
		return fmt.Errorf("%w: forfeit during %s", ErrWrongPhase, m.phase)
	}
	if _, ok := m.players[playerID]; !ok {
		return ErrUnknownPlayer
	}
	m.finish(m.opponent(playerID).ID)
	return nil
}

func (m *Match) fire(attacker, defender *Player, targets []Coordinate) {
	for _, c := range targets {
		m.credit(attacker, c, defender.ReceiveAttack(c))
	}
}

// credit records an attack's cells in the attacker's shot history. The
// center of a mine blast is recorded as a revealed mine instead of a miss.
func (m *Match) credit(attacker *Player, target Coordinate, out AttackOutcome) {
	for _, co := range out.Cells {
		switch {
		case co.Result.Damaging():
			attacker.AddHit(co.Coordinate)
		case out.MineExploded && co.Coordinate == target:
			// spent mine, revealed below
		default:
			attacker.AddMiss(co.Coordinate)
		}
	}
	if out.MineExploded {
		attacker.Reveal(target, RevealedMine)
	}
}

func (m *Match) checkWinner(attacker, defender *Player) bool {
	if !defender.HasLost() {
		return false
	}
	m.finish(attacker.ID)
	return true
}

func (m *Match) finish(winner string) {
	m.phase = PhaseFinished
	m.winner = winner
}
