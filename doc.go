// Package gjobq runs named Go functions as Gearman jobs. Register a
// function once with [Client.Register], then run it synchronously in
// the calling process ([Client.RunLocally]), synchronously against a
// Gearman server while waiting for the result ([Client.RunOnGearman]),
// or fire-and-forget ([Client.EnqueueOnGearman]). Run [worker.Pool] in
// whatever process should actually execute the registered functions
// when jobs arrive over the wire.
//
// # Quick start
//
//	c, err := gjobq.New(
//	    gjobq.WithGearmanServers("127.0.0.1:4730"),
//	    gjobq.WithWorkerLogDir("/var/log/gjobq"),
//	)
//	c.Register(function.New("send-email", sendEmail, function.WithRetries(2)))
//
//	result, err := c.RunOnGearman(ctx, "send-email", codec.Dict{"to": "a@example.com"})
//
// gjobq never persists anything beyond the per-job log file package
// logscope writes; job history, scheduling, and queue membership all
// live inside the Gearman server itself.
package gjobq
