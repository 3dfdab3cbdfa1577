package world

import (
	"fmt"
	"time"
)

// SimulationStateId is the fixed well-known id of the single world-state row.
const SimulationStateId = "ironwood"

// SimulationState is the singleton world clock. SimulationTime only ever
// moves forward.
type SimulationState struct {
	Id string `json:"id"`

	SimulationTime time.Time `json:"simulationTime"`

	// SimulationTimeVelocity is simulated seconds per real-world millisecond
	SimulationTimeVelocity float64 `json:"simulationTimeVelocity"`

	// ServerTime is the last real-world server timestamp in unix milliseconds
	ServerTime int64 `json:"serverTime"`
}

func (s *SimulationState) Key() string {
	return s.Id
}

func (s *SimulationState) Validate() error {
	if s.Id == "" {
		return fmt.Errorf("simulation state id must be set")
	}
	return nil
}

// SimulationSeconds is the simulated timestamp in epoch seconds.
func (s *SimulationState) SimulationSeconds() float64 {
	return float64(s.SimulationTime.UnixMilli()) / 1000
}
