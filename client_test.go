package gjobq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hollowcore/gjobq"
	"github.com/hollowcore/gjobq/codec"
	"github.com/hollowcore/gjobq/function"
	"github.com/hollowcore/gjobq/progress"
)

func echoFunc(_ context.Context, args codec.Dict, _ *progress.Sink) (codec.Dict, error) {
	return codec.Dict{"echoed": args["msg"]}, nil
}

func TestRunLocally_Success(t *testing.T) {
	c, err := gjobq.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Register(function.New("echo", echoFunc))

	result, err := c.RunLocally(context.Background(), "echo", codec.Dict{"msg": "hi"})
	if err != nil {
		t.Fatalf("RunLocally: %v", err)
	}
	inner, ok := result["result"].(codec.Dict)
	if !ok {
		t.Fatalf("expected dict result, got %#v", result["result"])
	}
	if inner["echoed"] != "hi" {
		t.Errorf("expected echoed=hi, got %#v", inner["echoed"])
	}
}

func TestRunLocally_UnknownFunction(t *testing.T) {
	c, err := gjobq.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.RunLocally(context.Background(), "missing", codec.Dict{})
	if !errors.Is(err, gjobq.ErrFunctionNotFound) {
		t.Errorf("expected ErrFunctionNotFound, got %v", err)
	}
}

func TestRunOnGearman_NoServersConfigured(t *testing.T) {
	c, err := gjobq.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Register(function.New("echo", echoFunc))

	_, err = c.RunOnGearman(context.Background(), "echo", codec.Dict{"msg": "hi"})
	if !errors.Is(err, gjobq.ErrNoServers) {
		t.Errorf("expected ErrNoServers, got %v", err)
	}
}

func TestEnqueueOnGearman_UnknownFunction(t *testing.T) {
	c, err := gjobq.New(gjobq.WithGearmanServers("127.0.0.1:4730"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.EnqueueOnGearman(context.Background(), "missing", codec.Dict{})
	if !errors.Is(err, gjobq.ErrFunctionNotFound) {
		t.Errorf("expected ErrFunctionNotFound, got %v", err)
	}
}

func TestClient_RegistryAndRunnerAccessible(t *testing.T) {
	c, err := gjobq.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Register(function.New("echo", echoFunc))

	if _, ok := c.Registry().Get("echo"); !ok {
		t.Error("expected echo to be registered")
	}
	if c.Runner() == nil {
		t.Error("expected non-nil Runner")
	}
	if c.Extensions() == nil {
		t.Error("expected non-nil extension Registry")
	}
}

func TestClose_NoQueueDialed(t *testing.T) {
	c, err := gjobq.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on a client that never dialed: %v", err)
	}
}
