// Package shell runs the host utilities desktop actions are built on.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Command is one program invocation
type Command struct {
	Name  string
	Args  []string
	Stdin []byte
	// DiscardOutput sends stdout and stderr to the null device. Use it for
	// programs that leave a child behind holding their output, such as xclip -i.
	DiscardOutput bool
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Cmd builds a Command
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Runner executes commands on the host
type Runner interface {
	// Run waits for the command and returns its stdout
	Run(ctx context.Context, cmd Command) ([]byte, error)
	// Start launches the command detached and returns its pid
	Start(cmd Command) (int, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	timeout   time.Duration
	waitDelay time.Duration
}

// NewExecRunner creates a runner with a 30s default timeout. Output pipes
// still held by descendants are closed 2s after the command exits.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{timeout: 30 * time.Second, waitDelay: 2 * time.Second}
}

// SetTimeout bounds every Run call
func (r *ExecRunner) SetTimeout(timeout time.Duration) {
	r.timeout = timeout
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.WaitDelay = r.waitDelay
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	if !cmd.DiscardOutput {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	err := c.Run()
	out := stdout.Bytes()
	// the command succeeded; a background child kept a pipe open
	if errors.Is(err, exec.ErrWaitDelay) {
		return out, nil
	}
	if err != nil {
		var notFound *exec.Error
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%s is not installed: %w", cmd.Name, err)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", cmd.Name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return out, nil
}

func (r *ExecRunner) Start(cmd Command) (int, error) {
	c := exec.Command(cmd.Name, cmd.Args...)
	if err := c.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", cmd.Name, err)
	}
	pid := c.Process.Pid
	go func() { _ = c.Wait() }()
	return pid, nil
}
