package gjobq

import "errors"

// ErrFunctionNotFound is returned by RunLocally, RunOnGearman, and
// EnqueueOnGearman when no function with the given name was registered.
var ErrFunctionNotFound = errors.New("gjobq: function not found")

// ErrNoServers is returned by RunOnGearman, EnqueueOnGearman and
// worker.Pool.Spawn when the Client was built without any Gearman
// servers configured.
var ErrNoServers = errors.New("gjobq: no gearman servers configured")
