// Package notify delivers the terminal-failure notification spec.md §4.5
// describes: a pluggable sink that composes a message and hands it to a
// mailer, never itself speaking SMTP (the concrete transport is
// explicitly out of scope; see spec.md §1).
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Message is the UTF-8 notification a Mailer is asked to deliver.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer is the pluggable collaborator that actually delivers a Message.
// The concrete SMTP transport is deliberately not implemented here.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier composes and delivers failure notifications.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// notifier is the default Notifier, mirroring spec.md §6's configuration
// surface (from address, subject prefix, recipient list).
type notifier struct {
	from          string
	subjectPrefix string
	recipients    []string
	mailer        Mailer
}

// New builds a Notifier that sends through mailer. If recipients is
// empty, notifications are silently disabled (spec.md §6: "empty
// disables notifications").
func New(from, subjectPrefix string, recipients []string, mailer Mailer) Notifier {
	if len(recipients) == 0 {
		return noopNotifier{}
	}
	return &notifier{from: from, subjectPrefix: subjectPrefix, recipients: recipients, mailer: mailer}
}

func (n *notifier) Notify(ctx context.Context, subject, body string) error {
	full := subject
	if n.subjectPrefix != "" {
		full = n.subjectPrefix + " " + subject
	}

	msg := Message{From: n.from, To: n.recipients, Subject: full, Body: body}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return &NotifierError{Err: err}
	}
	return nil
}

// noopNotifier is used when no recipients are configured.
type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, subject, body string) error { return nil }

// NotifierError reports that a Mailer failed to deliver a notification.
// It is always additional information, never a substitute for the
// original job failure that triggered the notification attempt.
type NotifierError struct {
	Err error
}

func (e *NotifierError) Error() string { return fmt.Sprintf("notify: %v", e.Err) }

func (e *NotifierError) Unwrap() error { return e.Err }

// NoopMailer discards every message. Useful as an explicit default when
// notifications are configured but the caller has not yet wired a real
// transport.
type NoopMailer struct{}

func (NoopMailer) Send(ctx context.Context, msg Message) error { return nil }

// CapturingMailer records every message it is asked to send, for tests.
// Safe for sequential use; not synchronized for concurrent Send calls
// from multiple goroutines.
type CapturingMailer struct {
	Sent []Message
}

func (m *CapturingMailer) Send(ctx context.Context, msg Message) error {
	m.Sent = append(m.Sent, msg)
	return nil
}

// FailingMailer always returns err, for tests of the NotifierError path.
type FailingMailer struct {
	Err error
}

func (m FailingMailer) Send(ctx context.Context, msg Message) error { return m.Err }

// FormatFailureBody assembles the failure body of spec.md §4.5: function
// name, host, timestamp, failure text, log path, and the last lines of
// the job's log.
func FormatFailureBody(functionName, host, timestamp, failureText, logPath string, tailLines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function: %s\n", functionName)
	fmt.Fprintf(&b, "host: %s\n", host)
	fmt.Fprintf(&b, "time: %s\n", timestamp)
	fmt.Fprintf(&b, "failure: %s\n", failureText)
	fmt.Fprintf(&b, "log: %s\n", logPath)
	if len(tailLines) > 0 {
		b.WriteString("\n--- last log lines ---\n")
		for _, line := range tailLines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
