package command

import (
	"fmt"
	"time"

	"github.com/ironwood-sim/ironwood/internal/engine"
	"github.com/pixil98/go-errors"
)

type SimulationConfig struct {
	// Velocity is simulated time units per frame. Zero keeps the default.
	Velocity float64 `json:"velocity"`

	FrameInterval string `json:"frame_interval"`
}

func (c *SimulationConfig) validate() error {
	el := errors.NewErrorList()

	if c.Velocity < 0 {
		el.Add(fmt.Errorf("velocity must not be negative"))
	}

	if c.FrameInterval != "" {
		d, err := time.ParseDuration(c.FrameInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing frame_interval: %w", err))
		} else if d <= 0 {
			el.Add(fmt.Errorf("frame_interval must be positive"))
		}
	}

	return el.Err()
}

func (c *SimulationConfig) opts() ([]engine.SimulationOpt, error) {
	var opts []engine.SimulationOpt
	if c.Velocity != 0 {
		opts = append(opts, engine.WithVelocity(c.Velocity))
	}
	if c.FrameInterval != "" {
		d, err := time.ParseDuration(c.FrameInterval)
		if err != nil {
			return nil, fmt.Errorf("parsing frame_interval: %w", err)
		}
		opts = append(opts, engine.WithFrameDuration(d))
	}
	return opts, nil
}
