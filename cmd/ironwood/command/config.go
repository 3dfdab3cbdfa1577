package command

import (
	"fmt"
	"os"

	"github.com/ironwood-sim/ironwood/internal/process"
	"github.com/pixil98/go-errors"
)

// RoleOrchestrator is the parent role: it hosts the embedded bus and
// supervises one child process per worker role.
const RoleOrchestrator = "orchestrator"

type Config struct {
	Role       string           `json:"role"`
	Bus        BusConfig        `json:"bus"`
	Storage    StorageConfig    `json:"storage"`
	Simulation SimulationConfig `json:"simulation"`
	Gateway    GatewayConfig    `json:"gateway"`
}

// role resolves the effective role. Children relaunched by the orchestrator
// carry their role in the environment, overriding the configured one.
func (c *Config) role() string {
	if role := os.Getenv(process.RoleEnv); role != "" {
		return role
	}
	if c.Role != "" {
		return c.Role
	}
	return RoleOrchestrator
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	switch c.role() {
	case RoleOrchestrator, process.RoleAuthority, process.RoleSimulation, process.RoleTransport:
	default:
		el.Add(fmt.Errorf("unknown role %q", c.role()))
	}

	el.Add(c.Bus.validate())
	el.Add(c.Storage.validate())
	el.Add(c.Simulation.validate())
	el.Add(c.Gateway.validate())

	return el.Err()
}
