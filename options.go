package gjobq

import (
	"log/slog"
	"time"

	"github.com/hollowcore/gjobq/backoff"
	"github.com/hollowcore/gjobq/ext"
	"github.com/hollowcore/gjobq/notify"
	"github.com/hollowcore/gjobq/queue"
)

// Option configures a Client at construction time.
type Option func(*buildState)

// buildState accumulates options before New assembles the collaborators
// a Client holds. Kept separate from Client itself so options never see
// a partially-wired Client.
type buildState struct {
	config     Config
	logger     *slog.Logger
	mailer     notify.Mailer
	extensions []ext.Extension
}

// WithGearmanServers sets the Gearman job servers to submit to and (via
// worker.Pool) register functions with.
func WithGearmanServers(addrs ...string) Option {
	return func(b *buildState) { b.config.GearmanServers = addrs }
}

// WithWorkerLogDir sets the base directory per-job log files are
// written under.
func WithWorkerLogDir(dir string) Option {
	return func(b *buildState) { b.config.WorkerLogDir = dir }
}

// WithNotifications configures the terminal-failure notification
// recipients, from address, and subject prefix. Call with an empty
// recipients slice to explicitly disable notifications.
func WithNotifications(fromAddress, subjectPrefix string, recipients []string) Option {
	return func(b *buildState) {
		b.config.NotificationsFromAddress = fromAddress
		b.config.NotificationsSubjectPrefix = subjectPrefix
		b.config.NotificationsEmails = recipients
	}
}

// WithMailer sets the transport notifications are sent through. Defaults
// to notify.NoopMailer{}; callers wanting real email wire their own
// notify.Mailer implementation (SMTP is explicitly out of scope for this
// library).
func WithMailer(m notify.Mailer) Option {
	return func(b *buildState) { b.mailer = m }
}

// WithBackoff overrides the retry delay strategy between attempts.
func WithBackoff(s backoff.Strategy) Option {
	return func(b *buildState) { b.config.Backoff = s }
}

// WithRequestTimeout bounds how long RunOnGearman/EnqueueOnGearman wait
// to dial and submit before giving up, independent of the caller's own
// context deadline. Zero (the default) applies no bound of its own.
func WithRequestTimeout(d time.Duration) Option {
	return func(b *buildState) { b.config.RequestTimeout = d }
}

// WithLogger sets the structured logger used throughout the Client and
// its Runner. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *buildState) { b.logger = l }
}

// WithExtension registers an extension with the Client's Registry. Call
// once per extension; order of registration is the order hooks fire in.
func WithExtension(e ext.Extension) Option {
	return func(b *buildState) { b.extensions = append(b.extensions, e) }
}

// WithThrottle rate-limits and caps concurrent submissions per function
// name on the Client's own queue connection, protecting the configured
// Gearman servers from a thundering herd of RunOnGearman/
// EnqueueOnGearman callers. Has no effect on worker.Pool's dedicated
// dequeue connections, which never submit.
func WithThrottle(m *queue.Manager) Option {
	return func(b *buildState) { b.config.Throttle = m }
}
