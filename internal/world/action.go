package world

import "fmt"

type ActionType string

const (
	ActionRotate ActionType = "ROTATE"
	ActionMove   ActionType = "MOVE"
	ActionIdle   ActionType = "IDLE"
)

// RotateParams turns an actor to a new bearing. Bearings are radians,
// clockwise from north.
type RotateParams struct {
	FromBearing float64 `json:"fromBearing"`
	ToBearing   float64 `json:"toBearing"`

	// Delta is the signed angular distance from FromBearing to ToBearing.
	// Its magnitude is under a full turn but it is not always the shorter
	// direction around.
	Delta float64 `json:"delta"`
}

// MoveParams walks an actor in a straight line between two points.
type MoveParams struct {
	FromX float64 `json:"fromX"`
	FromY float64 `json:"fromY"`
	ToX   float64 `json:"toX"`
	ToY   float64 `json:"toY"`
}

// Action is a scheduled, time-bounded effect on an actor's posture. An action
// is immutable once created and is consumed when its finish time passes.
// At most one of Rotate/Move is set, matching Type; IDLE carries neither.
type Action struct {
	Id   string     `json:"id"`
	Type ActionType `json:"type"`

	// StartAt and FinishAt are in simulated seconds
	StartAt  float64 `json:"startAt"`
	FinishAt float64 `json:"finishAt"`

	Rotate *RotateParams `json:"rotate,omitempty"`
	Move   *MoveParams   `json:"move,omitempty"`
}

func (a *Action) Key() string {
	return a.Id
}

func (a *Action) Validate() error {
	if a.Id == "" {
		return fmt.Errorf("action id must be set")
	}
	switch a.Type {
	case ActionRotate, ActionMove, ActionIdle:
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}
