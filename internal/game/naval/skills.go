package naval

import "sort"

// Skill names a special attack. Each skill is tied to one hull class and
// can only be used while that ship is afloat.
type Skill string

const (
	DroneRecon    Skill = "DRONE_RECON"
	XImpact       Skill = "X_IMPACT"
	ChaoticSalvo  Skill = "CHAOTIC_SALVO"
	SonarTorpedo  Skill = "SONAR_TORPEDO"
	RevealingShot Skill = "REVEALING_SHOT"
)

// Pattern is the shape of cells a skill affects.
type Pattern string

const (
	PatternScan3x3       Pattern = "SCAN_3X3"
	PatternCrossDiagonal Pattern = "CROSS_DIAGONAL"
	PatternGlobalRandom  Pattern = "GLOBAL_RANDOM_3"
	PatternLineRay       Pattern = "LINE_RAY"
	PatternSingleReveal  Pattern = "SINGLE_REVEAL"
)

// SalvoSize is the number of distinct cells a global random salvo strikes.
const SalvoSize = 3

type SkillConfig struct {
	Name        Skill    `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Cost        int      `json:"cost"`
	Pattern     Pattern  `json:"pattern"`
	LinkedShip  ShipType `json:"linkedShip"`
}

var skills = map[Skill]SkillConfig{
	DroneRecon: {
		Name:        DroneRecon,
		DisplayName: "Drone Recon",
		Description: "Reveals a 3x3 area without damage",
		Cost:        3,
		Pattern:     PatternScan3x3,
		LinkedShip:  Carrier,
	},
	XImpact: {
		Name:        XImpact,
		DisplayName: "Cross Impact",
		Description: "Strikes the center and its four diagonals",
		Cost:        4,
		Pattern:     PatternCrossDiagonal,
		LinkedShip:  Battleship,
	},
	ChaoticSalvo: {
		Name:        ChaoticSalvo,
		DisplayName: "Barrage",
		Description: "Three shots at random cells anywhere on the grid",
		Cost:        3,
		Pattern:     PatternGlobalRandom,
		LinkedShip:  Destroyer,
	},
	SonarTorpedo: {
		Name:        SonarTorpedo,
		DisplayName: "Torpedo",
		Description: "Runs up a column from the far edge until first impact",
		Cost:        3,
		Pattern:     PatternLineRay,
		LinkedShip:  Submarine,
	},
	RevealingShot: {
		Name:        RevealingShot,
		DisplayName: "Beacon",
		Description: "Single shot; a hit reveals the whole ship",
		Cost:        2,
		Pattern:     PatternSingleReveal,
		LinkedShip:  Corvette,
	},
}

// LookupSkill returns the configuration of a skill.
func LookupSkill(name Skill) (SkillConfig, bool) {
	cfg, ok := skills[name]
	return cfg, ok
}

// Skills returns every skill ordered by name.
func Skills() []SkillConfig {
	out := make([]SkillConfig, 0, len(skills))
	for _, cfg := range skills {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// resolver applies a pattern. Every bit of damage must go through the
// defender's ReceiveAttack.
type resolver func(m *Match, attacker, defender *Player, target Coordinate)

var resolvers = map[Pattern]resolver{
	PatternScan3x3:       resolveScan,
	PatternCrossDiagonal: resolveCrossDiagonal,
	PatternGlobalRandom:  resolveSalvo,
	PatternLineRay:       resolveLineRay,
	PatternSingleReveal:  resolveRevealingShot,
}

// AffectedCells previews the in-bounds cells a pattern covers around
// target. The random salvo has no preview; the line ray previews the whole
// column since where it stops depends on the defender's board.
func AffectedCells(p Pattern, target Coordinate) []Coordinate {
	var offsets [][2]int
	switch p {
	case PatternScan3x3:
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	case PatternCrossDiagonal:
		offsets = [][2]int{{0, 0}, {-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
	case PatternSingleReveal:
		offsets = [][2]int{{0, 0}}
	case PatternLineRay:
		if target.X < 0 || target.X >= GridSize {
			return nil
		}
		cells := make([]Coordinate, 0, GridSize)
		for y := GridSize - 1; y >= 0; y-- {
			cells = append(cells, Coordinate{X: target.X, Y: y})
		}
		return cells
	default:
		return nil
	}
	cells := make([]Coordinate, 0, len(offsets))
	for _, o := range offsets {
		if c := target.offset(o[0], o[1]); c.InBounds() {
			cells = append(cells, c)
		}
	}
	return cells
}

func resolveScan(_ *Match, attacker, defender *Player, target Coordinate) {
	for _, c := range AffectedCells(PatternScan3x3, target) {
		attacker.Reveal(c, defender.board.Reveal(c))
	}
}

func resolveCrossDiagonal(m *Match, attacker, defender *Player, target Coordinate) {
	m.fire(attacker, defender, AffectedCells(PatternCrossDiagonal, target))
}

func resolveSalvo(m *Match, attacker, defender *Player, _ Coordinate) {
	all := make([]Coordinate, 0, GridSize*GridSize)
	for x := 0; x < GridSize; x++ {
		for y := 0; y < GridSize; y++ {
			all = append(all, Coordinate{X: x, Y: y})
		}
	}
	m.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	m.fire(attacker, defender, all[:SalvoSize])
}

func resolveLineRay(m *Match, attacker, defender *Player, target Coordinate) {
	var path []Coordinate
	for _, c := range AffectedCells(PatternLineRay, target) {
		path = append(path, c)
		if defender.board.Obstructed(c) {
			break
		}
	}
	m.fire(attacker, defender, path)
}

func resolveRevealingShot(m *Match, attacker, defender *Player, target Coordinate) {
	ship, onShip := defender.board.ShipAt(target)
	m.fire(attacker, defender, []Coordinate{target})
	if !onShip {
		return
	}
	for _, c := range ship.Cells {
		attacker.Reveal(c, defender.board.Reveal(c))
	}
}
