package command

import (
	"fmt"

	"github.com/ironwood-sim/ironwood/internal/process"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	switch role := cfg.role(); role {
	case RoleOrchestrator:
		nats, err := cfg.Bus.buildNatsServer()
		if err != nil {
			return nil, fmt.Errorf("creating nats server: %w", err)
		}

		spawn, err := process.ExecSpawner()
		if err != nil {
			return nil, fmt.Errorf("creating spawner: %w", err)
		}

		return service.WorkerList{
			"nats":       nats,
			"supervisor": process.NewSupervisor(spawn),
		}, nil

	case process.RoleAuthority:
		return service.WorkerList{
			"authority": &authorityWorker{cfg: cfg},
		}, nil

	case process.RoleSimulation:
		return service.WorkerList{
			"simulation": &simulationWorker{cfg: cfg},
		}, nil

	case process.RoleTransport:
		return service.WorkerList{
			"transport": &transportWorker{cfg: cfg},
		}, nil

	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}
