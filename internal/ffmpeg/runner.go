// Package ffmpeg runs the external transcoder and media pumps.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultTailLines is how much combined output a process keeps for diagnostics.
const DefaultTailLines = 50

// RunError is a failed invocation with the tail of its combined output.
type RunError struct {
	Args   []string
	Err    error
	Output []string
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	if n := len(e.Output); n > 0 {
		msg += ": " + e.Output[n-1]
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

// Runner invokes one binary, normally ffmpeg.
type Runner struct {
	Binary    string
	TailLines int
}

// New returns a Runner for binary, defaulting to "ffmpeg".
func New(binary string) *Runner {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Runner{Binary: binary, TailLines: DefaultTailLines}
}

// Run executes the binary and blocks until it exits. Cancelling ctx kills it.
func (r *Runner) Run(ctx context.Context, args ...string) error {
	ring := NewRingBuffer(r.tail())
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdout = ring
	cmd.Stderr = ring
	setProcessGroup(cmd)

	if err := cmd.Run(); err != nil {
		return &RunError{Args: cmd.Args, Err: err, Output: ring.Lines()}
	}
	return nil
}

// Start launches the binary detached from ctx: the process keeps running
// after the caller returns and is only ended by its own exit or by Stop.
// ctx is consulted once, before launch.
func (r *Runner) Start(ctx context.Context, args ...string) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ring := NewRingBuffer(r.tail())
	cmd := exec.Command(r.Binary, args...)
	cmd.Stdout = ring
	cmd.Stderr = ring
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, &RunError{Args: cmd.Args, Err: err}
	}

	p := &Process{
		cmd:     cmd,
		ring:    ring,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go p.wait()
	return p, nil
}

func (r *Runner) tail() int {
	if r.TailLines <= 0 {
		return DefaultTailLines
	}
	return r.TailLines
}

// Process is a running pump.
type Process struct {
	cmd     *exec.Cmd
	ring    *RingBuffer
	started time.Time

	done     chan struct{}
	mu       sync.Mutex
	err      error
	stopping bool
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	if err != nil {
		p.err = &RunError{Args: p.cmd.Args, Err: err, Output: p.ring.Lines()}
	}
	p.mu.Unlock()
	close(p.done)
}

// Pid is the operating system process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// StartedAt is the launch time.
func (p *Process) StartedAt() time.Time { return p.started }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until exit and returns nil for a zero exit status.
func (p *Process) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stopped reports whether Stop was called, which makes a non-zero exit expected.
func (p *Process) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopping
}

// Output returns the retained tail of combined stdout and stderr.
func (p *Process) Output() []string { return p.ring.Lines() }

// ErrStopTimeout is returned when a process survives SIGKILL for longer than
// the stop timeout.
var ErrStopTimeout = errors.New("process did not exit after kill")

// Stop terminates the process group: an interrupt first, a kill after grace.
func (p *Process) Stop(grace time.Duration) error {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}

	_ = signalGroup(p.cmd, false)
	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	_ = signalGroup(p.cmd, true)
	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
		return ErrStopTimeout
	}
}
