package world

import (
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestSimulationSeconds(t *testing.T) {
	state := &SimulationState{
		Id:             SimulationStateId,
		SimulationTime: time.UnixMilli(1500),
	}

	testutil.AssertEqual(t, "seconds", state.SimulationSeconds(), 1.5)
}

func TestSimulationStateValidate(t *testing.T) {
	state := &SimulationState{}
	testutil.AssertErrorContains(t, state.Validate(), "id must be set")

	state.Id = SimulationStateId
	if err := state.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
