package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hollowcore/gjobq"
	"github.com/hollowcore/gjobq/id"
	"github.com/hollowcore/gjobq/queue"
)

// DefaultPoolCap is the default maximum number of child worker
// goroutines a Pool will run at once, across every spawned function.
const DefaultPoolCap = 48

// ErrPoolCapacityExceeded is returned by Spawn when launching the
// requested instances would exceed the Pool's capacity.
var ErrPoolCapacityExceeded = errors.New("worker: pool capacity exceeded")

// PoolOption configures a Pool at construction time.
type PoolOption func(*Pool)

// WithCap overrides DefaultPoolCap.
func WithCap(n int) PoolOption {
	return func(p *Pool) { p.cap = n }
}

// WithModuleSuffix sets the module filename suffix stored on the Pool.
// Defaults to "_function". DiscoverModules takes its suffix as an
// argument and does not read this setting.
func WithModuleSuffix(suffix string) PoolOption {
	return func(p *Pool) { p.moduleSuffix = suffix }
}

// WithPoolLogger overrides the Pool's logger. Defaults to the logger of
// the Client the Pool was built from.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// Pool supervises a set of goroutine-isolated child workers, one per
// (function, instance) pair, up to a configurable capacity. Spawning
// more instances than the remaining capacity allows fails fast with
// ErrPoolCapacityExceeded rather than silently queueing.
type Pool struct {
	client       *gjobq.Client
	cap          int
	moduleSuffix string
	logger       *slog.Logger

	mu      sync.Mutex
	size    int
	running []*runningWorker
}

type runningWorker struct {
	functionName string
	done         chan error
}

// NewPool creates a Pool bound to client's function registry and
// Runner. No child workers are running until Spawn is called.
func NewPool(client *gjobq.Client, opts ...PoolOption) *Pool {
	p := &Pool{
		client:       client,
		cap:          DefaultPoolCap,
		moduleSuffix: "_function",
		logger:       client.Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Spawn launches instances goroutine-isolated child workers for the
// named function, each dialing its own connection to every server in
// the Client's configured Gearman servers. functionName must already be
// registered with the Client.
func (p *Pool) Spawn(ctx context.Context, functionName string, instances int) error {
	if instances <= 0 {
		return fmt.Errorf("worker: spawn %q: instances must be positive, got %d", functionName, instances)
	}

	desc, ok := p.client.Registry().Get(functionName)
	if !ok {
		return fmt.Errorf("worker: spawn %q: %w", functionName, gjobq.ErrFunctionNotFound)
	}

	addrs := p.client.GearmanServers()
	if len(addrs) == 0 {
		return gjobq.ErrNoServers
	}

	p.mu.Lock()
	if p.size+instances > p.cap {
		p.mu.Unlock()
		return ErrPoolCapacityExceeded
	}
	p.size += instances
	p.mu.Unlock()

	for i := 0; i < instances; i++ {
		backends, err := dialAll(ctx, addrs)
		if err != nil {
			p.mu.Lock()
			p.size -= instances - i
			p.mu.Unlock()
			return fmt.Errorf("worker: spawn %q: %w", functionName, err)
		}

		w := &worker{
			id:           id.NewWorkerID(),
			functionName: functionName,
			desc:         desc,
			runner:       p.client.Runner(),
			backends:     backends,
			logger:       p.logger,
		}

		rw := &runningWorker{functionName: functionName, done: make(chan error, 1)}
		p.mu.Lock()
		p.running = append(p.running, rw)
		p.mu.Unlock()

		go func() {
			rw.done <- w.run(ctx)
		}()
	}

	return nil
}

// dialAll dials every address, skipping any that fails and keeping the
// connections that succeeded. At least one configured server must
// accept, or Spawn reports it as a fatal construction error.
func dialAll(ctx context.Context, addrs []string) ([]queue.Backend, error) {
	backends := make([]queue.Backend, 0, len(addrs))
	var lastErr error
	for _, addr := range addrs {
		b, err := queue.DialGearman(ctx, addr)
		if err != nil {
			lastErr = err
			continue
		}
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("could not connect to any configured server: %w", lastErr)
	}
	return backends, nil
}

// Wait blocks until every spawned child worker has exited, either
// because ctx (the context Spawn was called with) was cancelled or
// because a worker hit a fatal protocol error. It returns every
// non-nil error a worker exited with other than context.Canceled, one
// child's exit never affecting
// its siblings — there is no errgroup-style cancellation here by
// design.
func (p *Pool) Wait() []error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	var errs []error
	for _, rw := range running {
		if err := <-rw.done; err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("worker %q: %w", rw.functionName, err))
		}
	}
	return errs
}

// Size returns the number of child worker goroutines currently spawned,
// running or exited, across every function.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}
