package world

import (
	"encoding/json"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestActorUnmarshalDefaults(t *testing.T) {
	var actor Actor
	err := json.Unmarshal([]byte(`{"id":"actor-1"}`), &actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "type", actor.Type, "NONE")
	testutil.AssertEqual(t, "name", actor.Name, "Nameless")
	if actor.Actions == nil {
		t.Error("expected actions to default to an empty list")
	}
}

func TestActorUnmarshalKeepsValues(t *testing.T) {
	var actor Actor
	err := json.Unmarshal([]byte(`{
		"id": "actor-1",
		"type": "HUMAN",
		"name": "Ada",
		"posture": {"x": 10, "y": 20, "bearing": 1.5},
		"vision": {"fov": 2.0943, "range": 100},
		"actions": [{"id": "act-1", "type": "IDLE", "startAt": 0, "finishAt": 60}]
	}`), &actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "type", actor.Type, "HUMAN")
	testutil.AssertEqual(t, "name", actor.Name, "Ada")
	testutil.AssertEqual(t, "x", actor.Posture.X, 10.0)
	testutil.AssertEqual(t, "action count", len(actor.Actions), 1)
	testutil.AssertEqual(t, "action type", actor.Actions[0].Type, ActionIdle)
}

func TestActorValidate(t *testing.T) {
	tests := []struct {
		name   string
		actor  *Actor
		expErr string
	}{
		{
			name:  "valid",
			actor: &Actor{Id: "actor-1"},
		},
		{
			name:   "missing id",
			actor:  &Actor{},
			expErr: "actor id must be set",
		},
		{
			name: "bad action",
			actor: &Actor{
				Id:      "actor-1",
				Actions: []*Action{{Id: "act-1", Type: "TELEPORT"}},
			},
			expErr: "unknown action type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.actor.Validate()
			if tt.expErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			testutil.AssertErrorContains(t, err, tt.expErr)
		})
	}
}

func TestCleanupActions_CommitsFinishedRotate(t *testing.T) {
	actor := &Actor{
		Id:      "actor-1",
		Posture: Posture{Bearing: 0},
		Actions: []*Action{{
			Id:       "act-1",
			Type:     ActionRotate,
			StartAt:  100,
			FinishAt: 110,
			Rotate:   &RotateParams{FromBearing: 0, ToBearing: 1.2, Delta: 1.2},
		}},
	}

	pending := actor.CleanupActions(110)
	testutil.AssertEqual(t, "pending", pending, false)
	testutil.AssertEqual(t, "bearing", actor.Posture.Bearing, 1.2)
	testutil.AssertEqual(t, "remaining", len(actor.Actions), 0)
}

func TestCleanupActions_CommitsFinishedMove(t *testing.T) {
	actor := &Actor{
		Id:      "actor-1",
		Posture: Posture{X: 5, Y: 5},
		Actions: []*Action{{
			Id:       "act-1",
			Type:     ActionMove,
			StartAt:  100,
			FinishAt: 112,
			Move:     &MoveParams{FromX: 5, FromY: 5, ToX: 17, ToY: 3},
		}},
	}

	actor.CleanupActions(200)
	testutil.AssertEqual(t, "x", actor.Posture.X, 17.0)
	testutil.AssertEqual(t, "y", actor.Posture.Y, 3.0)
}

func TestCleanupActions_KeepsUnfinished(t *testing.T) {
	actor := &Actor{
		Id: "actor-1",
		Actions: []*Action{
			{Id: "done", Type: ActionIdle, StartAt: 0, FinishAt: 60},
			{Id: "running", Type: ActionIdle, StartAt: 60, FinishAt: 120},
		},
	}

	pending := actor.CleanupActions(60)
	testutil.AssertEqual(t, "pending", pending, true)
	testutil.AssertEqual(t, "remaining", len(actor.Actions), 1)
	testutil.AssertEqual(t, "remaining id", actor.Actions[0].Id, "running")
}

func TestCleanupActions_FinishExactlyNowIsConsumed(t *testing.T) {
	actor := &Actor{
		Id: "actor-1",
		Actions: []*Action{
			{Id: "act-1", Type: ActionIdle, StartAt: 0, FinishAt: 100},
		},
	}

	pending := actor.CleanupActions(100)
	testutil.AssertEqual(t, "pending", pending, false)
}
