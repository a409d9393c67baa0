package codec

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Dict is an argument or result dictionary: string keys mapping to
// scalars, []any, or nested Dict values.
type Dict = map[string]any

// CodecError is returned when a value cannot be represented on the wire,
// or when the mandatory round-trip check diverges from the input.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string { return fmt.Sprintf("codec: %s: %v", e.Op, e.Err) }

func (e *CodecError) Unwrap() error { return e.Err }

// Encode serializes d into the library's private binary format.
//
// Encode(nil) returns an empty slice. Encoding is deterministic: two
// dictionaries that are semantically equal (same keys/values regardless
// of insertion order) always produce byte-identical output, because map
// keys are sorted by the underlying msgpack encoder at every level.
//
// Encode verifies its own round-trip by decoding the bytes it just wrote
// and comparing the result against d by deep structural equality. Any
// divergence — including a value this codec cannot represent at all —
// surfaces as a *CodecError before the bytes ever reach the queue.
func Encode(d Dict) ([]byte, error) {
	if d == nil {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(d); err != nil {
		return nil, &CodecError{Op: "encode", Err: err}
	}

	out := buf.Bytes()

	decoded, err := Decode(out)
	if err != nil {
		return nil, &CodecError{Op: "encode: round-trip decode", Err: err}
	}
	if !reflect.DeepEqual(normalize(d), normalize(decoded)) {
		return nil, &CodecError{Op: "encode: round-trip mismatch", Err: fmt.Errorf("decoded value does not match input")}
	}

	return out, nil
}

// Decode deserializes bytes produced by Encode back into a Dict.
//
// Decode([]byte{}) returns nil, the inverse of Encode(nil).
func Decode(b []byte) (Dict, error) {
	if len(b) == 0 {
		return nil, nil
	}

	var out map[string]any
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&out); err != nil {
		return nil, &CodecError{Op: "decode", Err: err}
	}
	return normalizeDict(out), nil
}

// normalize recursively coerces a decoded value's numeric types to a
// canonical width (int64 for integers, float64 for floats) so that
// structural comparisons between pre-encode and post-decode values are
// not defeated by msgpack's compact, type-widening wire representation.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeDict(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

func normalizeDict(d map[string]any) Dict {
	if d == nil {
		return nil
	}
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = normalize(v)
	}
	return out
}

// sortedKeys returns d's keys in lexicographic order, the same ordering
// this codec uses on the wire.
func sortedKeys(d Dict) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedKeys returns d's keys in lexicographic order.
func SortedKeys(d Dict) []string { return sortedKeys(d) }
