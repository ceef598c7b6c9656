package server

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

type fakePump struct {
	pid     int
	started time.Time
	done    chan struct{}
	once    sync.Once
	err     error
	stopped atomic.Bool
}

func newFakePump(pid int) *fakePump {
	return &fakePump{pid: pid, started: time.Now(), done: make(chan struct{})}
}

func (p *fakePump) exit(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

func (p *fakePump) Pid() int              { return p.pid }
func (p *fakePump) StartedAt() time.Time  { return p.started }
func (p *fakePump) Done() <-chan struct{} { return p.done }
func (p *fakePump) Output() []string      { return []string{"fake pump output"} }
func (p *fakePump) Stopped() bool         { return p.stopped.Load() }

func (p *fakePump) Wait() error {
	<-p.done
	return p.err
}

func (p *fakePump) Stop(time.Duration) error {
	p.stopped.Store(true)
	p.exit(nil)
	return nil
}

// fakeLauncher records launches. onStart, if set, runs after the pump is
// created and before Start returns.
type fakeLauncher struct {
	mu      sync.Mutex
	nextPID int
	err     error
	onStart func(p *fakePump, args []string)
	started []*fakePump
	args    [][]string
}

func (l *fakeLauncher) Start(ctx context.Context, args ...string) (Pump, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.nextPID++
	p := newFakePump(1000 + l.nextPID)
	l.started = append(l.started, p)
	l.args = append(l.args, slices.Clone(args))
	if l.onStart != nil {
		l.onStart(p, args)
	}
	return p, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.started)
}

func (l *fakeLauncher) pump(i int) *fakePump {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started[i]
}

func (l *fakeLauncher) argsOf(i int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.args[i]
}

// argAfter returns the argument following flag.
func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

var errLaunch = errors.New("exec: \"ffmpeg\": executable file not found in $PATH")
