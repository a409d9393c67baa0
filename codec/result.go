package codec

// ResultKey is the dictionary key under which every value handed to the
// queue is wrapped, so that a nil result is distinguishable from "no
// result at all".
const ResultKey = "result"

// WrapResult builds the canonical {"result": value} envelope.
func WrapResult(value any) Dict {
	return Dict{ResultKey: value}
}

// UnwrapResult extracts the inner value from a {"result": value} envelope.
// ok is false if d does not carry the result key at all.
func UnwrapResult(d Dict) (value any, ok bool) {
	if d == nil {
		return nil, false
	}
	value, ok = d[ResultKey]
	return value, ok
}
