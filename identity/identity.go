package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hollowcore/gjobq/codec"
)

// maxGJSIDBytes is the maximum length of an assembled GJS job ID.
const maxGJSIDBytes = 256

// CanonicalKey renders the deterministic "<name>(<k1>=<v1>, ...)" string
// used as the queue's uniqueness token when a function is declared
// unique. Keys are always sorted lexicographically, so two dictionaries
// with equal contents produce the same key regardless of insertion order.
func CanonicalKey(name string, args codec.Dict) string {
	return name + "(" + renderDictBody(args) + ")"
}

// renderDictBody renders a dict's sorted "k1=v1, k2=v2" body, without the
// surrounding delimiter, so both CanonicalKey's "(...)" and renderValue's
// nested "{...}" can share it.
func renderDictBody(d codec.Dict) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+renderValue(d[k]))
	}

	return strings.Join(parts, ", ")
}

// renderValue is the stable scalar printer of spec §4.2, extended to
// render nested dicts/lists deterministically (sorted keys, in-order
// elements) so that CanonicalKey never depends on map iteration order at
// any depth.
func renderValue(v any) string {
	switch val := v.(type) {
	case codec.Dict:
		return "{" + renderDictBody(val) + "}"
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = renderValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// allowedGJSIDChar reports whether r is permitted unescaped in a GJS job ID.
func allowedGJSIDChar(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("._-()=,", r):
		return true
	default:
		return false
	}
}

// sanitize replaces every character outside [A-Za-z0-9._\-()=,] with '_'.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowedGJSIDChar(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// randomLocalPrefix generates a fresh 128-bit random identifier rendered
// as 32 hex characters, used as the GJS ID prefix when a job runs
// locally without a queue handle. crypto/rand is the only reasonable
// source of this randomness; no pack library specializes in bare random
// hex tokens, and every call reads its own entropy so concurrent callers
// never contend on shared state.
func randomLocalPrefix() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("identity: generate random prefix: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// NewGJSID assembles the library-generated job identifier of spec §4.2.
//
// When handle is non-nil, the prefix is the parsed queue handle with its
// host segment stripped. When handle is nil, a fresh random prefix is
// generated. The assembled string is truncated to at most 256 bytes
// (prefix first, so the prefix survives truncation) and every character
// outside [A-Za-z0-9._\-()=,] is replaced with '_'.
func NewGJSID(canonicalKey string, handle *Handle) (string, error) {
	var prefix string
	if handle != nil {
		prefix = handle.Prefix()
	} else {
		p, err := randomLocalPrefix()
		if err != nil {
			return "", err
		}
		prefix = p
	}

	raw := sanitize(prefix) + "." + sanitize(canonicalKey)
	if len(raw) > maxGJSIDBytes {
		raw = raw[:maxGJSIDBytes]
	}
	return raw, nil
}

// handleBodyPattern matches the "H:token:digits" body of a queue handle,
// after any "host//" segment has been stripped.
var handleBodyPattern = regexp.MustCompile(`^H:[^:]+:[0-9]+$`)

// Handle is a parsed queue handle, e.g. "H:lap.example.org:8" or
// "lap.example.org//H:lap.example.org:8".
type Handle struct {
	raw  string
	body string
}

// Prefix returns the handle with its host segment (the "server//" part,
// if present) stripped, i.e. the bare "H:token:digits" body. NewGJSID
// uses this string, sanitized like the rest of the ID (so each ':'
// becomes '_'), as a job ID prefix.
func (h Handle) Prefix() string { return h.body }

// String returns the original, unmodified handle text.
func (h Handle) String() string { return h.raw }

// HandleFormatError reports that a string is not a well-formed queue
// handle.
type HandleFormatError struct {
	Input string
}

func (e *HandleFormatError) Error() string {
	return fmt.Sprintf("identity: malformed queue handle %q", e.Input)
}

// ParseHandle parses a queue handle in either of its two observed forms:
// bare "H:token:digits", or host-qualified "server//H:token:digits". Any
// other shape is a *HandleFormatError.
func ParseHandle(s string) (Handle, error) {
	body := s
	if idx := strings.Index(s, "//"); idx >= 0 {
		body = s[idx+2:]
	}

	if !handleBodyPattern.MatchString(body) {
		return Handle{}, &HandleFormatError{Input: s}
	}

	return Handle{raw: s, body: body}, nil
}
