package function_test

import (
	"context"
	"testing"
	"time"

	"github.com/hollowcore/gjobq/codec"
	"github.com/hollowcore/gjobq/function"
	"github.com/hollowcore/gjobq/progress"
	"github.com/hollowcore/gjobq/queue"
)

func echoRun(ctx context.Context, args codec.Dict, p *progress.Sink) (codec.Dict, error) {
	return args, nil
}

func TestNew_DefaultsToNormalPriorityNoRetries(t *testing.T) {
	d := function.New("echo", echoRun)
	if d.Priority != queue.PriorityNormal {
		t.Errorf("Priority = %v, want Normal", d.Priority)
	}
	if d.Retries != 0 {
		t.Errorf("Retries = %d, want 0", d.Retries)
	}
	if d.Unique {
		t.Error("Unique = true, want false by default")
	}
}

func TestNew_AppliesOptions(t *testing.T) {
	d := function.New("resize_image", echoRun,
		function.WithTimeout(30*time.Second),
		function.WithRetries(3),
		function.WithUnique(true),
		function.WithPriority(queue.PriorityHigh),
		function.WithNotifyOnFailure(true),
	)

	if d.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", d.Timeout)
	}
	if d.Retries != 3 {
		t.Errorf("Retries = %d, want 3", d.Retries)
	}
	if !d.Unique {
		t.Error("Unique = false, want true")
	}
	if d.Priority != queue.PriorityHigh {
		t.Errorf("Priority = %v, want High", d.Priority)
	}
	if !d.NotifyOnFailure {
		t.Error("NotifyOnFailure = false, want true")
	}
}

func TestRegistry_RegisterGetNames(t *testing.T) {
	r := function.NewRegistry()
	if _, ok := r.Get("echo"); ok {
		t.Fatal("Get on empty registry: want ok=false")
	}

	d := function.New("echo", echoRun)
	r.Register(d)

	got, ok := r.Get("echo")
	if !ok || got != d {
		t.Fatalf("Get(echo) = (%v, %v), want (%v, true)", got, ok, d)
	}

	names := r.Names()
	if len(names) != 1 || names[0] != "echo" {
		t.Fatalf("Names() = %v, want [echo]", names)
	}
}

func TestRegistry_ReregisterReplaces(t *testing.T) {
	r := function.NewRegistry()
	r.Register(function.New("f", echoRun, function.WithRetries(1)))
	r.Register(function.New("f", echoRun, function.WithRetries(5)))

	got, _ := r.Get("f")
	if got.Retries != 5 {
		t.Fatalf("Retries = %d, want 5 after re-register", got.Retries)
	}
}
