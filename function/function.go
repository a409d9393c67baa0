// Package function holds the function descriptor — the immutable,
// per-name declaration of a piece of work this library can dispatch —
// and the registry functions are looked up by name through.
package function

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hollowcore/gjobq/codec"
	"github.com/hollowcore/gjobq/progress"
	"github.com/hollowcore/gjobq/queue"
)

// RunFunc is the function body a Descriptor wraps. args and the
// returned result are restricted by codec.Dict's own value rules. A
// fresh closure implementing the function's logic is expected per
// invocation — the Descriptor itself carries no mutable state, so
// nothing leaks across jobs sharing the same function name.
type RunFunc func(ctx context.Context, args codec.Dict, progress *progress.Sink) (codec.Dict, error)

// Descriptor is the immutable declaration of a dispatchable function,
// registered once and never mutated afterward.
type Descriptor struct {
	Name            string
	Timeout         time.Duration
	Retries         int
	Unique          bool
	Priority        queue.Priority
	NotifyOnFailure bool
	Run             RunFunc
}

// Options mirrors the teacher's job.Options, trimmed to the fields this
// spec's function descriptor actually carries.
type Options struct {
	Timeout         time.Duration
	Retries         int
	Unique          bool
	Priority        queue.Priority
	NotifyOnFailure bool
}

// DefaultOptions returns the options a Descriptor gets when no Option is
// supplied: no timeout, no retries, not unique, normal priority, no
// failure notification.
func DefaultOptions() Options {
	return Options{Priority: queue.PriorityNormal}
}

// Option configures a Descriptor at registration time.
type Option func(*Options)

// WithTimeout sets the per-attempt execution deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithRetries sets the number of retry attempts after the first.
// Retries == k means up to k+1 total attempts.
func WithRetries(n int) Option {
	return func(o *Options) { o.Retries = n }
}

// WithUnique marks the function's submissions as mergeable by the queue
// when they share the same canonical job key.
func WithUnique(unique bool) Option {
	return func(o *Options) { o.Unique = unique }
}

// WithPriority sets the submission priority class.
func WithPriority(p queue.Priority) Option {
	return func(o *Options) { o.Priority = p }
}

// WithNotifyOnFailure enables the terminal-failure notification path.
func WithNotifyOnFailure(notify bool) Option {
	return func(o *Options) { o.NotifyOnFailure = notify }
}

// New builds a Descriptor named name, running run, configured by opts.
func New(name string, run RunFunc, opts ...Option) *Descriptor {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Descriptor{
		Name:            name,
		Timeout:         o.Timeout,
		Retries:         o.Retries,
		Unique:          o.Unique,
		Priority:        o.Priority,
		NotifyOnFailure: o.NotifyOnFailure,
		Run:             run,
	}
}

// BackendRegistrationError reports that a function name could not be
// registered with any configured Gearman server.
type BackendRegistrationError struct {
	Name string
	Err  error
}

func (e *BackendRegistrationError) Error() string {
	return fmt.Sprintf("function: register %q: %v", e.Name, e.Err)
}

func (e *BackendRegistrationError) Unwrap() error { return e.Err }

// ErrBackendRegistration is the comparable form of
// BackendRegistrationError for errors.Is.
var ErrBackendRegistration = &BackendRegistrationError{}

func (e *BackendRegistrationError) Is(target error) bool {
	_, ok := target.(*BackendRegistrationError)
	return ok
}

// Registry maps function names to their Descriptor. Safe for concurrent
// use. Grounded on the teacher's job.Registry, simplified: this spec has
// no JSON-typed-payload split to erase, since codec.Dict is already the
// one argument shape every Descriptor accepts.
type Registry struct {
	mu    sync.RWMutex
	descs map[string]*Descriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{descs: make(map[string]*Descriptor)}
}

// Register adds desc to the registry under desc.Name. Registering a
// second Descriptor under the same name replaces the first.
func (r *Registry) Register(desc *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descs[desc.Name] = desc
}

// Get returns the Descriptor registered under name, if any.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[name]
	return d, ok
}

// Names returns every registered function name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.descs))
	for name := range r.descs {
		names = append(names, name)
	}
	return names
}
