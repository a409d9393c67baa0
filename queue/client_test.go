package queue

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

// newTestBackend wires a gearmanBackend to two net.Pipe connections,
// returning the server-side ends a test's fake peer goroutine reads
// from and writes to.
func newTestBackend(t *testing.T) (*gearmanBackend, net.Conn, net.Conn) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	adminClientConn, adminServerConn := net.Pipe()

	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
		adminClientConn.Close()
		adminServerConn.Close()
	})

	b := &gearmanBackend{
		addr:      "test",
		conn:      clientConn,
		r:         bufio.NewReader(clientConn),
		adminConn: adminClientConn,
		adminR:    bufio.NewReader(adminClientConn),
	}
	return b, serverConn, adminServerConn
}

func TestSubmitForeground_Success(t *testing.T) {
	b, serverConn, _ := newTestBackend(t)

	errc := make(chan error, 1)
	go func() {
		r := bufio.NewReader(serverConn)
		req, err := readFrame(r)
		if err != nil {
			errc <- err
			return
		}
		if req.ptype != ptSubmitJob {
			errc <- errUnexpected(req.ptype)
			return
		}

		if err := writeFrame(serverConn, buildFrame(resMagic, ptJobCreated, "H:test:1")); err != nil {
			errc <- err
			return
		}
		if err := writeFrame(serverConn, buildFrame(resMagic, ptWorkStatus, "H:test:1", "3", "10")); err != nil {
			errc <- err
			return
		}
		if err := writeFrame(serverConn, buildFrame(resMagic, ptWorkComplete, "H:test:1", "done")); err != nil {
			errc <- err
			return
		}
		errc <- nil
	}()

	var gotNum, gotDen int
	handle, result, err := b.SubmitForeground(context.Background(), PriorityNormal, "resize_image", "", []byte("payload"), func(num, den int) {
		gotNum, gotDen = num, den
	})
	if err != nil {
		t.Fatalf("SubmitForeground error: %v", err)
	}
	if handle != "H:test:1" {
		t.Errorf("handle = %q, want H:test:1", handle)
	}
	if string(result) != "done" {
		t.Errorf("result = %q, want %q", result, "done")
	}
	if gotNum != 3 || gotDen != 10 {
		t.Errorf("progress = (%d,%d), want (3,10)", gotNum, gotDen)
	}

	if err := <-errc; err != nil {
		t.Fatalf("fake peer error: %v", err)
	}
}

func TestSubmitForeground_WorkFail(t *testing.T) {
	b, serverConn, _ := newTestBackend(t)

	go func() {
		r := bufio.NewReader(serverConn)
		readFrame(r)
		writeFrame(serverConn, buildFrame(resMagic, ptJobCreated, "H:test:2"))
		writeFrame(serverConn, buildFrame(resMagic, ptWorkFail, "H:test:2"))
	}()

	_, _, err := b.SubmitForeground(context.Background(), PriorityNormal, "f", "", nil, nil)
	if err == nil {
		t.Fatal("SubmitForeground: want error on WORK_FAIL, got nil")
	}
	qe, ok := err.(*QueueError)
	if !ok {
		t.Fatalf("error type = %T, want *QueueError", err)
	}
	if qe.Handle != "H:test:2" {
		t.Errorf("QueueError.Handle = %q, want H:test:2", qe.Handle)
	}
}

func TestSubmitBackground_ReturnsHandleWithoutWaiting(t *testing.T) {
	b, serverConn, _ := newTestBackend(t)

	go func() {
		r := bufio.NewReader(serverConn)
		readFrame(r)
		writeFrame(serverConn, buildFrame(resMagic, ptJobCreated, "H:test:3"))
	}()

	handle, err := b.SubmitBackground(context.Background(), PriorityHigh, "f", "unique-key", []byte("x"))
	if err != nil {
		t.Fatalf("SubmitBackground error: %v", err)
	}
	if handle != "H:test:3" {
		t.Errorf("handle = %q, want H:test:3", handle)
	}
}

func TestCancel_OK(t *testing.T) {
	b, _, adminServerConn := newTestBackend(t)

	go func() {
		r := bufio.NewReader(adminServerConn)
		r.ReadString('\n')
		adminServerConn.Write([]byte("OK\r\n"))
	}()

	if err := b.Cancel(context.Background(), "H:test:1"); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
}

func TestCancel_Refused(t *testing.T) {
	b, _, adminServerConn := newTestBackend(t)

	go func() {
		r := bufio.NewReader(adminServerConn)
		r.ReadString('\n')
		adminServerConn.Write([]byte("ERR UNKNOWN_JOB Unable to cancel\r\n"))
	}()

	err := b.Cancel(context.Background(), "H:test:nope")
	if err == nil {
		t.Fatal("Cancel: want error for refusal, got nil")
	}
	if _, ok := err.(*QueueError); !ok {
		t.Fatalf("error type = %T, want *QueueError", err)
	}
}

func TestAdmin_SingleLine(t *testing.T) {
	b, _, adminServerConn := newTestBackend(t)

	go func() {
		r := bufio.NewReader(adminServerConn)
		r.ReadString('\n')
		adminServerConn.Write([]byte("OK\r\n"))
	}()

	out, err := b.Admin(context.Background(), "create function")
	if err != nil {
		t.Fatalf("Admin error: %v", err)
	}
	if out != "OK" {
		t.Errorf("Admin = %q, want OK", out)
	}
}

func TestAdmin_MultiLine(t *testing.T) {
	b, _, adminServerConn := newTestBackend(t)

	go func() {
		r := bufio.NewReader(adminServerConn)
		r.ReadString('\n')
		adminServerConn.Write([]byte("resize_image\t2\t1\t1\r\n"))
		adminServerConn.Write([]byte(".\r\n"))
	}()

	out, err := b.Admin(context.Background(), "status")
	if err != nil {
		t.Fatalf("Admin error: %v", err)
	}
	if out != "resize_image\t2\t1\t1" {
		t.Errorf("Admin = %q, want resize_image\\t2\\t1\\t1", out)
	}
}

func TestGrabJob_SleepsThenAssignsAfterNoop(t *testing.T) {
	b, serverConn, _ := newTestBackend(t)

	go func() {
		r := bufio.NewReader(serverConn)

		// First GRAB_JOB -> NO_JOB, then PRE_SLEEP.
		readFrame(r) // GRAB_JOB
		writeFrame(serverConn, buildFrame(resMagic, ptNoJob))

		readFrame(r) // PRE_SLEEP
		writeFrame(serverConn, buildFrame(resMagic, ptNoop))

		// Second GRAB_JOB -> JOB_ASSIGN.
		readFrame(r)
		writeFrame(serverConn, buildFrame(resMagic, ptJobAssign, "H:test:4", "resize_image", "payload-bytes"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job, err := b.GrabJob(ctx)
	if err != nil {
		t.Fatalf("GrabJob error: %v", err)
	}
	if job.Handle != "H:test:4" || job.FunctionName != "resize_image" {
		t.Fatalf("job = %+v, want handle/func H:test:4/resize_image", job)
	}
	if string(job.Payload) != "payload-bytes" {
		t.Errorf("job.Payload = %q, want payload-bytes", job.Payload)
	}
}

type unexpectedPacketType packetType

func (e unexpectedPacketType) Error() string { return "unexpected packet type" }

func errUnexpected(pt packetType) error { return unexpectedPacketType(pt) }

// recordingBackend is a minimal in-memory Backend double used to assert
// Client.Status/Cancel route to the backend that actually issued a
// handle, rather than an arbitrary round-robin pick.
type recordingBackend struct {
	name string

	submitHandle string
	statusCalled bool
	statusResult Status
	statusErr    error
	cancelCalled bool
	cancelErr    error
}

func (b *recordingBackend) SubmitForeground(context.Context, Priority, string, string, []byte, ProgressFunc) (string, []byte, error) {
	return b.submitHandle, nil, nil
}
func (b *recordingBackend) SubmitBackground(context.Context, Priority, string, string, []byte) (string, error) {
	return b.submitHandle, nil
}
func (b *recordingBackend) Status(context.Context, string) (Status, error) {
	b.statusCalled = true
	return b.statusResult, b.statusErr
}
func (b *recordingBackend) Cancel(context.Context, string) error {
	b.cancelCalled = true
	return b.cancelErr
}
func (b *recordingBackend) Admin(context.Context, string) (string, error) { return "", nil }
func (b *recordingBackend) RegisterFunction(context.Context, string, time.Duration) error {
	return nil
}
func (b *recordingBackend) GrabJob(context.Context) (*AssignedJob, error) { return nil, nil }
func (b *recordingBackend) WorkStatus(context.Context, string, int, int) error { return nil }
func (b *recordingBackend) WorkComplete(context.Context, string, []byte) error { return nil }
func (b *recordingBackend) WorkFail(context.Context, string) error             { return nil }
func (b *recordingBackend) Close() error                                       { return nil }

// TestClient_StatusRoutesToOwningBackend grounds spec.md §4.3: with more
// than one configured server, Status for a handle issued by backend B
// must reach B, not whichever backend round-robin happens to pick next.
func TestClient_StatusRoutesToOwningBackend(t *testing.T) {
	owner := &recordingBackend{name: "owner", submitHandle: "H:owner:1", statusResult: Status{Known: true}}
	other := &recordingBackend{name: "other"}
	c := &Client{backends: []Backend{owner, other}, handleOwner: make(map[string]Backend)}

	handle, _, err := c.SubmitForeground(context.Background(), PriorityNormal, "f", "", nil, nil)
	if err != nil {
		t.Fatalf("SubmitForeground error: %v", err)
	}

	if _, err := c.Status(context.Background(), handle); err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if !owner.statusCalled {
		t.Error("Status did not reach the owning backend")
	}
	if other.statusCalled {
		t.Error("Status reached a backend that never issued the handle")
	}
}

// TestClient_CancelRoutesToOwningBackend is Cancel's equivalent of the
// above.
func TestClient_CancelRoutesToOwningBackend(t *testing.T) {
	owner := &recordingBackend{name: "owner", submitHandle: "H:owner:2"}
	other := &recordingBackend{name: "other"}
	c := &Client{backends: []Backend{owner, other}, handleOwner: make(map[string]Backend)}

	handle, err := c.SubmitBackground(context.Background(), PriorityNormal, "f", "", nil)
	if err != nil {
		t.Fatalf("SubmitBackground error: %v", err)
	}

	if err := c.Cancel(context.Background(), handle); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if !owner.cancelCalled {
		t.Error("Cancel did not reach the owning backend")
	}
	if other.cancelCalled {
		t.Error("Cancel reached a backend that never issued the handle")
	}
}

// TestClient_StatusFallsBackToEveryBackendForUntrackedHandle covers a
// handle this Client never submitted itself: Status must try every
// configured server in turn rather than erroring immediately.
func TestClient_StatusFallsBackToEveryBackendForUntrackedHandle(t *testing.T) {
	unknown := &recordingBackend{name: "unknown", statusResult: Status{Known: false}}
	known := &recordingBackend{name: "known", statusResult: Status{Known: true}}
	c := &Client{backends: []Backend{unknown, known}, handleOwner: make(map[string]Backend)}

	st, err := c.Status(context.Background(), "H:elsewhere:9")
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if !unknown.statusCalled || !known.statusCalled {
		t.Error("expected every backend to be consulted for an untracked handle")
	}
	if !st.Known {
		t.Errorf("Status = %+v, want the known reply", st)
	}
}
