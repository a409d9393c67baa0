// Package queue implements the Gearman wire protocol ([wire.go]) and
// exposes it as [Client], a façade over one or more Gearman server
// connections covering the library's five-capability surface: submit
// foreground, submit background, poll status, cancel, and send admin
// commands.
//
// # Rate limiting
//
// [Manager] optionally caps and rate-limits submissions per function
// name, protecting a Gearman server from a thundering herd of
// background enqueues:
//
//	throttle := queue.NewManager(
//	    queue.FunctionLimit{Name: "send-email", MaxConcurrent: 5, RateLimit: 10},
//	)
//	c, err := queue.NewClient(ctx, []string{"gearman1:4730"}, throttle)
//
// A nil Manager (the common case) applies no limits.
package queue
