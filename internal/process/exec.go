package process

import (
	"fmt"
	"os"
	"os/exec"
)

// RoleEnv is the environment variable a child process reads to learn which
// role it should run.
const RoleEnv = "IRONWOOD_ROLE"

// WorkerEnv carries the child's index within its role, distinguishing the
// transport workers from each other.
const WorkerEnv = "IRONWOOD_WORKER"

type execChild struct {
	cmd *exec.Cmd
}

func (c *execChild) Wait() error {
	return c.cmd.Wait()
}

func (c *execChild) Signal(sig os.Signal) error {
	return c.cmd.Process.Signal(sig)
}

// ExecSpawner relaunches the current binary with the same arguments, with
// the child's role carried in the environment. Child output is forwarded to
// the supervisor's streams.
func ExecSpawner() (Spawner, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving executable path: %w", err)
	}

	return func(role string, index int) (Child, error) {
		cmd := exec.Command(self, os.Args[1:]...)
		cmd.Env = append(os.Environ(),
			fmt.Sprintf("%s=%s", RoleEnv, role),
			fmt.Sprintf("%s=%d", WorkerEnv, index))
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("starting %s process: %w", role, err)
		}

		return &execChild{cmd: cmd}, nil
	}, nil
}
