package main

import (
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// process is a byte stream made of the standard input and output of a child process.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	once   sync.Once
	err    error
}

func startProcess(command []string) (*process, error) {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdin pipe")
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}

	if err = cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", command[0])
	}

	return &process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
	}, nil
}

func (p *process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// CloseWrite closes the child's standard input, so it sees the end of the request.
func (p *process) CloseWrite() error {
	return p.stdin.Close()
}

// Close kills the child unless it has already exited. Safe to be called multiple times.
func (p *process) Close() error {
	p.once.Do(func() {
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.err = err
		}

		_ = p.cmd.Process.Kill()
		p.err = multierr.Append(p.err, ignoreExit(p.cmd.Wait()))
	})

	return p.err
}

// ignoreExit drops errors caused by the child being killed or exiting abnormally, as
// only the bytes it produced matter.
func ignoreExit(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}

	return err
}
