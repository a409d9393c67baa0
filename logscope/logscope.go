// Package logscope implements the per-attempt log isolation contract of
// spec.md §4.5 and §9: every job writes to its own file under
// <base>/<function>/<gjs-id>.log, every line is timestamped and
// PID-prefixed, and a worker that retries into the same GJS ID appends
// rather than truncates.
//
// Because this library realizes worker instances as goroutines rather
// than OS processes (spec.md §9's explicit allowance), isolation cannot
// be achieved by redirecting the process's real stdout/stderr file
// descriptors — concurrent goroutines share those. Instead a Scope is an
// io.Writer a job's middleware chain writes to explicitly; nothing about
// the real os.Stdout/os.Stderr of the host process is ever touched.
package logscope

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// sanitizeComponent keeps a directory/file path component free of path
// separators, without touching the wider character set identity.NewGJSID
// already sanitizes its own identifiers against.
func sanitizeComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '_'
		default:
			return r
		}
	}, s)
}

// Scope is one job attempt's isolated log destination. It implements
// io.Writer; every call buffers a trailing partial line until Close or
// the next newline.
type Scope struct {
	path string
	file *os.File

	mu      sync.Mutex
	partial []byte
}

// Acquire opens (creating parent directories as needed) the log file for
// functionName/gjsID under baseDir, appending if it already exists. It
// writes a "Starting" banner line if the file is new, or "Restarting" if
// a prior attempt already logged to this GJS ID.
func Acquire(baseDir, functionName, gjsID string) (*Scope, error) {
	dir := filepath.Join(baseDir, sanitizeComponent(functionName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logscope: create log dir: %w", err)
	}

	path := filepath.Join(dir, gjsID+".log")
	_, statErr := os.Stat(path)
	existed := statErr == nil

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logscope: open log file: %w", err)
	}

	s := &Scope{path: path, file: f}

	banner := "Starting"
	if existed {
		banner = "Restarting"
	}
	if err := s.writeLine([]byte(banner)); err != nil {
		f.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the log file's path.
func (s *Scope) Path() string { return s.path }

// Write implements io.Writer, timestamping and PID-prefixing each
// complete line. A trailing partial line (no terminating '\n' yet) is
// held back until the next Write or Close.
func (s *Scope) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := append(s.partial, p...)
	lines := bytes.Split(data, []byte("\n"))
	s.partial = append([]byte(nil), lines[len(lines)-1]...)

	for _, line := range lines[:len(lines)-1] {
		if err := s.writeLineLocked(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (s *Scope) writeLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLineLocked(line)
}

func (s *Scope) writeLineLocked(line []byte) error {
	prefix := fmt.Sprintf("%s [%d] ", time.Now().Format(time.RFC3339), os.Getpid())
	if _, err := s.file.Write([]byte(prefix)); err != nil {
		return err
	}
	if _, err := s.file.Write(line); err != nil {
		return err
	}
	_, err := s.file.Write([]byte("\n"))
	return err
}

// Close flushes any trailing partial line and closes the underlying
// file. Safe to call even if the Scope was never written to.
func (s *Scope) Close() error {
	s.mu.Lock()
	if len(s.partial) > 0 {
		line := s.partial
		s.partial = nil
		s.mu.Unlock()
		if err := s.writeLine(line); err != nil {
			s.file.Close()
			return err
		}
	} else {
		s.mu.Unlock()
	}
	return s.file.Close()
}

// TailLines returns at most the last n lines of the file at path, used
// to assemble the failure-notification body (spec.md §4.5: "last 50 log
// lines").
func TailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logscope: open for tail: %w", err)
	}
	defer f.Close()

	var all []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("logscope: scan for tail: %w", err)
	}

	if n <= 0 || n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}
