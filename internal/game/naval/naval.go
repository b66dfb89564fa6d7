package naval

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"navalcombat/internal/game"
)

// Name is the registry name of the game.
const Name = "naval"

// Action types accepted by ApplyAction.
const (
	ActionPlaceShip = "place_ship"
	ActionPlaceMine = "place_mine"
	ActionReady     = "ready"
	ActionAttack    = "attack"
	ActionUseSkill  = "use_skill"
	ActionForfeit   = "forfeit"
)

// Naval implements game.Game.
type Naval struct {
	// NewRand, when set, supplies the random source for each new match.
	NewRand func() *rand.Rand
}

func (n Naval) Info() game.GameInfo {
	return game.GameInfo{
		Name:       Name,
		MinPlayers: 2,
		MaxPlayers: 2,
	}
}

func (n Naval) NewMatch(config game.MatchConfig) game.Match {
	var opts []Option
	if n.NewRand != nil {
		opts = append(opts, WithRand(n.NewRand()))
	}
	return NewMatch(config.ID, opts...)
}

type placeShipPayload struct {
	Type       ShipType `json:"type"`
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Horizontal bool     `json:"horizontal"`
}

type targetPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type skillPayload struct {
	Skill Skill `json:"skill"`
	X     int   `json:"x"`
	Y     int   `json:"y"`
}

func (m *Match) State(playerID string) any {
	return m.View(playerID)
}

// ApplyAction decodes and runs one command. A successful skill that does
// not end the match passes the turn.
func (m *Match) ApplyAction(playerID string, action game.Action) error {
	switch action.Type {
	case ActionPlaceShip:
		var p placeShipPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		return m.PlaceShip(playerID, p.Type, Coordinate{X: p.X, Y: p.Y}, p.Horizontal)

	case ActionPlaceMine:
		var p targetPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		return m.PlaceMine(playerID, Coordinate{X: p.X, Y: p.Y})

	case ActionReady:
		return m.SetReady(playerID)

	case ActionAttack:
		var p targetPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		_, err := m.Attack(playerID, Coordinate{X: p.X, Y: p.Y})
		return err

	case ActionUseSkill:
		var p skillPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		if err := m.UseSkill(playerID, p.Skill, Coordinate{X: p.X, Y: p.Y}); err != nil {
			return err
		}
		if !m.IsOver() {
			m.SwitchTurn()
		}
		return nil

	case ActionForfeit:
		return m.Forfeit(playerID)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, action.Type)
	}
}

func decode(action game.Action, v any) error {
	if len(action.Payload) == 0 {
		return fmt.Errorf("missing %s payload", action.Type)
	}
	if err := json.Unmarshal(action.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", action.Type, err)
	}
	return nil
}

// ValidActions lists the action types the player may send right now.
// Skill actions carry the skill name; coordinates are left to the client.
func (m *Match) ValidActions(playerID string) []game.Action {
	p, ok := m.players[playerID]
	if !ok {
		return nil
	}
	var actions []game.Action
	switch m.phase {
	case PhasePlacement:
		if p.ready {
			break
		}
		actions = append(actions, game.Action{Type: ActionPlaceShip})
		if p.minesLeft > 0 {
			actions = append(actions, game.Action{Type: ActionPlaceMine})
		}
		if len(p.board.ships) == ShipsPerPlayer && len(p.placedMines) == MinesPerPlayer {
			actions = append(actions, game.Action{Type: ActionReady})
		}
	case PhaseCombat:
		if m.turn != playerID {
			break
		}
		actions = append(actions, game.Action{Type: ActionAttack})
		for _, cfg := range Skills() {
			if p.ap < cfg.Cost || !p.HasAfloat(cfg.LinkedShip) {
				continue
			}
			payload, _ := json.Marshal(map[string]Skill{"skill": cfg.Name})
			actions = append(actions, game.Action{Type: ActionUseSkill, Payload: payload})
		}
	default:
		return nil
	}
	return append(actions, game.Action{Type: ActionForfeit})
}

func (m *Match) Results() []game.PlayerResult {
	if m.phase != PhaseFinished || len(m.order) < 2 {
		return nil
	}
	if m.winner == "" {
		return []game.PlayerResult{
			{PlayerID: m.order[0], Rank: 1, Score: 0},
			{PlayerID: m.order[1], Rank: 1, Score: 0},
		}
	}
	loser := m.opponent(m.winner).ID
	return []game.PlayerResult{
		{PlayerID: m.winner, Rank: 1, Score: 1},
		{PlayerID: loser, Rank: 2, Score: 0},
	}
}
