package world

import (
	"encoding/json"
	"fmt"
)

// Posture is an actor's position and facing.
type Posture struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Bearing is radians, clockwise from north
	Bearing float64 `json:"bearing"`
}

// Vision is an actor's field of view (radians) and sight range (world units).
type Vision struct {
	Fov   float64 `json:"fov"`
	Range float64 `json:"range"`
}

// Actor is an autonomous inhabitant of the world. It holds an ordered list of
// pending actions; at steady state exactly one movement or rotation action is
// in flight, though the list may transiently be empty.
type Actor struct {
	Id   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`

	Posture Posture   `json:"posture"`
	Vision  Vision    `json:"vision"`
	Actions []*Action `json:"actions"`
}

func (a *Actor) Key() string {
	return a.Id
}

func (a *Actor) Validate() error {
	if a.Id == "" {
		return fmt.Errorf("actor id must be set")
	}
	for i, action := range a.Actions {
		if err := action.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

func (a *Actor) UnmarshalJSON(b []byte) error {
	type Alias Actor
	if err := json.Unmarshal(b, (*Alias)(a)); err != nil {
		return err
	}
	if a.Type == "" {
		a.Type = "NONE"
	}
	if a.Name == "" {
		a.Name = "Nameless"
	}
	if a.Actions == nil {
		a.Actions = []*Action{}
	}
	return nil
}

// CleanupActions applies and discards every action whose finish time has
// passed, committing its terminal effect to the actor's posture. Returns
// whether any actions remain pending.
func (a *Actor) CleanupActions(simulationTime float64) bool {
	remaining := a.Actions[:0]
	for _, action := range a.Actions {
		if action.FinishAt > simulationTime {
			remaining = append(remaining, action)
			continue
		}

		switch action.Type {
		case ActionRotate:
			if action.Rotate != nil {
				a.Posture.Bearing = action.Rotate.ToBearing
			}
		case ActionMove:
			if action.Move != nil {
				a.Posture.X = action.Move.ToX
				a.Posture.Y = action.Move.ToY
			}
		}
	}
	a.Actions = remaining

	return len(a.Actions) > 0
}
