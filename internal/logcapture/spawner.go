package logcapture

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Process is a running log-streaming subprocess.
type Process interface {
	Pid() int
	Terminate() error
	Kill() error
	Wait() error
}

// Spawner starts subprocesses with stdout and stderr attached to out.
type Spawner interface {
	Spawn(name string, args []string, out io.Writer) (Process, error)
}

// ExecSpawner spawns real OS processes.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(name string, args []string, out io.Writer) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Terminate() error {
	err := p.cmd.Process.Signal(syscall.SIGTERM)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Wait() error { return p.cmd.Wait() }
