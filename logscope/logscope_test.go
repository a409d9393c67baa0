package logscope_test

import (
	"os"
	"strings"
	"testing"

	"github.com/hollowcore/gjobq/logscope"
)

func TestAcquire_WritesStartingBannerOnFirstUse(t *testing.T) {
	dir := t.TempDir()

	s, err := logscope.Acquire(dir, "resize_image", "abc123.resize_image()")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	content, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(content), "Starting") {
		t.Errorf("log content = %q, want Starting banner", content)
	}
}

func TestAcquire_WritesRestartingBannerOnSecondUse(t *testing.T) {
	dir := t.TempDir()

	s1, err := logscope.Acquire(dir, "resize_image", "abc123.resize_image()")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	s1.Close()

	s2, err := logscope.Acquire(dir, "resize_image", "abc123.resize_image()")
	if err != nil {
		t.Fatalf("second Acquire error: %v", err)
	}
	s2.Close()

	content, err := os.ReadFile(s2.Path())
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(content), "Restarting") {
		t.Errorf("log content = %q, want Restarting banner on second attempt", content)
	}
	if s1.Path() != s2.Path() {
		t.Errorf("paths differ across attempts: %q vs %q", s1.Path(), s2.Path())
	}
}

func TestScope_WritePrefixesEachLine(t *testing.T) {
	dir := t.TempDir()

	s, err := logscope.Acquire(dir, "f", "id.f()")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}

	pid := os.Getpid()
	s.Write([]byte("line one\nline two\n"))
	s.Close()

	content, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 3 { // banner + two written lines
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), content)
	}
	for _, l := range lines[1:] {
		if !strings.Contains(l, "line") {
			t.Errorf("line %q missing content", l)
		}
		pidTag := "["
		if !strings.Contains(l, pidTag) {
			t.Errorf("line %q missing pid bracket", l)
		}
	}
	_ = pid
}

func TestScope_WriteFlushesPartialLineOnClose(t *testing.T) {
	dir := t.TempDir()

	s, err := logscope.Acquire(dir, "f", "id2.f()")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	s.Write([]byte("no trailing newline"))
	s.Close()

	content, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(content), "no trailing newline") {
		t.Errorf("content missing partial line: %q", content)
	}
}

func TestTailLines_ReturnsLastNLines(t *testing.T) {
	dir := t.TempDir()
	s, err := logscope.Acquire(dir, "f", "id3.f()")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	for i := 0; i < 10; i++ {
		s.Write([]byte("line\n"))
	}
	s.Close()

	tail, err := logscope.TailLines(s.Path(), 3)
	if err != nil {
		t.Fatalf("TailLines error: %v", err)
	}
	if len(tail) != 3 {
		t.Fatalf("TailLines returned %d lines, want 3", len(tail))
	}
}

func TestTailLines_NMoreThanAvailableReturnsAll(t *testing.T) {
	dir := t.TempDir()
	s, err := logscope.Acquire(dir, "f", "id4.f()")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	s.Close()

	tail, err := logscope.TailLines(s.Path(), 50)
	if err != nil {
		t.Fatalf("TailLines error: %v", err)
	}
	if len(tail) != 1 { // just the banner line
		t.Fatalf("TailLines returned %d lines, want 1", len(tail))
	}
}
