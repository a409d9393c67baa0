package gjobq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hollowcore/gjobq/codec"
	"github.com/hollowcore/gjobq/ext"
	"github.com/hollowcore/gjobq/function"
	"github.com/hollowcore/gjobq/identity"
	"github.com/hollowcore/gjobq/middleware"
	"github.com/hollowcore/gjobq/notify"
	"github.com/hollowcore/gjobq/queue"
	"github.com/hollowcore/gjobq/runner"
)

// newChainFactory builds the runner.ChainFactory that wires the real
// middleware pipeline into every job attempt. It lives here, in the root
// package, rather than inside runner, because runner cannot import
// middleware without creating a cycle (middleware imports runner for
// *runner.Job). runner.Handler and middleware.Handler are distinct named
// types with identical underlying signatures, so bridging the two chain
// types only needs converting at the innermost handler.
func newChainFactory() runner.ChainFactory {
	return func(logger *slog.Logger, timeout time.Duration) runner.Chain {
		mw := middleware.Chain(
			middleware.Recover(logger),
			middleware.Tracing(),
			middleware.Metrics(),
			middleware.Logging(logger),
			middleware.Timeout(logger, timeout),
		)
		return func(ctx context.Context, j *runner.Job, next runner.Handler) error {
			return mw(ctx, j, middleware.Handler(next))
		}
	}
}

// Client is the library's entry point: a function registry, a lazily
// dialed Gearman queue connection, a Runner, and an extension registry,
// wired together by New.
type Client struct {
	config   Config
	logger   *slog.Logger
	registry *function.Registry
	runner   *runner.Runner
	ext      *ext.Registry

	queueOnce sync.Once
	queue     *queue.Client
	queueErr  error
}

// New builds a Client from the given options. No network connection is
// made until RunOnGearman, EnqueueOnGearman, or a worker.Pool built over
// this Client first needs one.
func New(opts ...Option) (*Client, error) {
	b := &buildState{config: DefaultConfig()}
	for _, opt := range opts {
		opt(b)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	mailer := b.mailer
	if mailer == nil {
		mailer = notify.NoopMailer{}
	}
	notifier := notify.New(
		b.config.NotificationsFromAddress,
		b.config.NotificationsSubjectPrefix,
		b.config.NotificationsEmails,
		mailer,
	)

	reg := ext.NewRegistry(logger)
	for _, e := range b.extensions {
		reg.Register(e)
	}

	c := &Client{
		config:   b.config,
		logger:   logger,
		registry: function.NewRegistry(),
		ext:      reg,
	}
	c.runner = runner.New(b.config.WorkerLogDir, notifier, reg, b.config.Backoff, logger, newChainFactory())
	return c, nil
}

// Register adds desc to the function registry. Register every function
// before calling RunLocally/RunOnGearman/EnqueueOnGearman or starting a
// worker.Pool over this Client.
func (c *Client) Register(desc *function.Descriptor) {
	c.registry.Register(desc)
}

// Registry exposes the underlying function registry, used by
// worker.Pool to discover what to register with Gearman.
func (c *Client) Registry() *function.Registry { return c.registry }

// Runner exposes the underlying Runner, used by worker.Pool to execute
// dequeued jobs.
func (c *Client) Runner() *runner.Runner { return c.runner }

// Logger returns the Client's structured logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Extensions exposes the underlying extension registry, the one the
// Client's Runner emits its job lifecycle hooks through (for local runs
// and for jobs a worker.Pool executes).
func (c *Client) Extensions() *ext.Registry { return c.ext }

// GearmanServers returns the Client's configured Gearman server
// addresses, each normalized with a default port if one wasn't given.
// worker.Pool dials its own dedicated connections to these addresses
// rather than sharing the Client's lazily dialed queue.Client.
func (c *Client) GearmanServers() []string { return normalizeServers(c.config.GearmanServers) }

// queueClient lazily dials every configured Gearman server on first use
// and reuses the connection for every later call.
func (c *Client) queueClient(ctx context.Context) (*queue.Client, error) {
	c.queueOnce.Do(func() {
		if len(c.config.GearmanServers) == 0 {
			c.queueErr = ErrNoServers
			return
		}
		c.queue, c.queueErr = queue.NewClient(ctx, normalizeServers(c.config.GearmanServers), c.config.Throttle)
	})
	return c.queue, c.queueErr
}

// RunLocally runs the named function's registered body in the calling
// process, bypassing Gearman entirely: no network round trip, no queue
// submission, no dequeue. The job still goes through the full retry,
// timeout, middleware, and notification machinery of Runner.Run; only
// its GJS ID carries a randomly generated local prefix since there is
// no Gearman handle to derive one from.
func (c *Client) RunLocally(ctx context.Context, name string, args codec.Dict) (codec.Dict, error) {
	desc, ok := c.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("gjobq: run locally %q: %w", name, ErrFunctionNotFound)
	}
	return c.runner.Run(ctx, desc, args, nil, nil)
}

// withRequestTimeout bounds ctx by Config.RequestTimeout, if one is set.
// The returned cancel must always be called; it is a no-op when no
// timeout was applied.
func (c *Client) withRequestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.RequestTimeout)
}

// RunOnGearman submits the named function to a configured Gearman
// server and blocks until the server reports completion or failure,
// returning the decoded inner result value (the "result" key of the
// canonical {"result": value} envelope).
func (c *Client) RunOnGearman(ctx context.Context, name string, args codec.Dict) (any, error) {
	desc, ok := c.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("gjobq: run on gearman %q: %w", name, ErrFunctionNotFound)
	}

	ctx, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	qc, err := c.queueClient(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := codec.Encode(args)
	if err != nil {
		return nil, fmt.Errorf("gjobq: encode args for %q: %w", name, err)
	}

	uniqueKey := ""
	if desc.Unique {
		uniqueKey = identity.CanonicalKey(name, args)
	}

	handle, resultBytes, err := qc.SubmitForeground(ctx, desc.Priority, name, uniqueKey, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("gjobq: run on gearman %q (handle %s): %w", name, handle, err)
	}

	result, err := codec.Decode(resultBytes)
	if err != nil {
		return nil, fmt.Errorf("gjobq: decode result for %q (handle %s): %w", name, handle, err)
	}
	value, _ := codec.UnwrapResult(result)
	return value, nil
}

// EnqueueOnGearman submits the named function to a configured Gearman
// server and returns its assigned handle immediately, without waiting
// for completion.
func (c *Client) EnqueueOnGearman(ctx context.Context, name string, args codec.Dict) (string, error) {
	desc, ok := c.registry.Get(name)
	if !ok {
		return "", fmt.Errorf("gjobq: enqueue on gearman %q: %w", name, ErrFunctionNotFound)
	}

	ctx, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	qc, err := c.queueClient(ctx)
	if err != nil {
		return "", err
	}

	payload, err := codec.Encode(args)
	if err != nil {
		return "", fmt.Errorf("gjobq: encode args for %q: %w", name, err)
	}

	uniqueKey := ""
	if desc.Unique {
		uniqueKey = identity.CanonicalKey(name, args)
	}

	handle, err := qc.SubmitBackground(ctx, desc.Priority, name, uniqueKey, payload)
	if err != nil {
		return "", fmt.Errorf("gjobq: enqueue on gearman %q: %w", name, err)
	}
	return handle, nil
}

// Close releases the queue connection, if one was ever dialed.
func (c *Client) Close() error {
	if c.queue != nil {
		return c.queue.Close()
	}
	return nil
}
