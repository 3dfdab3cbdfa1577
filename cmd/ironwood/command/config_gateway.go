package command

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ironwood-sim/ironwood/internal/process"
	"github.com/pixil98/go-errors"
)

type GatewayConfig struct {
	Port uint16 `json:"port"`
}

func (c *GatewayConfig) validate() error {
	el := errors.NewErrorList()

	if c.Port == 0 {
		el.Add(fmt.Errorf("port must be set to a positive integer"))
	}

	return el.Err()
}

// port offsets the configured base port by the transport worker's index, so
// each worker process binds its own listener.
func (c *GatewayConfig) port() (uint16, error) {
	index := 0
	if v := os.Getenv(process.WorkerEnv); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parsing %s: %w", process.WorkerEnv, err)
		}
		index = i
	}

	return c.Port + uint16(index), nil
}
