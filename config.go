package gjobq

import (
	"strings"
	"time"

	"github.com/hollowcore/gjobq/backoff"
	"github.com/hollowcore/gjobq/queue"
)

// defaultGearmanPort is appended to any server address in
// Config.GearmanServers that doesn't already carry a port.
const defaultGearmanPort = "4730"

// Config holds the settings New builds a Client from. Construct one
// with DefaultConfig and override fields directly, or use the With*
// options, which mutate a Config built the same way.
type Config struct {
	// GearmanServers is the list of Gearman job servers this Client
	// submits to and (via worker.Pool) registers functions with.
	// host:port is accepted as-is; a bare host gets ":4730" appended.
	GearmanServers []string

	// WorkerLogDir is the base directory logscope writes per-job log
	// files under. Required for any function with NotifyOnFailure set,
	// since the notification body tails this file.
	WorkerLogDir string

	// NotificationsEmails is the recipient list for terminal-failure
	// notifications. Empty disables notifications entirely regardless
	// of a function's NotifyOnFailure setting.
	NotificationsEmails []string

	// NotificationsFromAddress is the From header on notification
	// emails.
	NotificationsFromAddress string

	// NotificationsSubjectPrefix is prepended to every notification
	// subject line, e.g. "[gjobq]".
	NotificationsSubjectPrefix string

	// Backoff selects the retry delay strategy Runner.Run uses between
	// attempts. Defaults to backoff.DefaultStrategy().
	Backoff backoff.Strategy

	// RequestTimeout bounds how long RunOnGearman/EnqueueOnGearman wait
	// to dial and submit before giving up. Zero means no timeout beyond
	// the caller's own context.
	RequestTimeout time.Duration

	// Throttle rate-limits and caps concurrent submissions per function
	// name on the Client's queue connection (RunOnGearman/
	// EnqueueOnGearman). Nil means no throttling.
	Throttle *queue.Manager
}

// DefaultConfig returns a Config with no servers configured (RunLocally
// still works; RunOnGearman/EnqueueOnGearman/worker.Pool require at
// least one via WithGearmanServers) and backoff.DefaultStrategy().
func DefaultConfig() Config {
	return Config{
		Backoff: backoff.DefaultStrategy(),
	}
}

// normalizeServers appends the default Gearman port to any address that
// doesn't already carry one.
func normalizeServers(addrs []string) []string {
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		if !strings.Contains(addr, ":") {
			addr = addr + ":" + defaultGearmanPort
		}
		out[i] = addr
	}
	return out
}
