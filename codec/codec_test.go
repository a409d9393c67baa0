package codec_test

import (
	"testing"

	"github.com/hollowcore/gjobq/codec"
)

func TestEncode_NilIsEmpty(t *testing.T) {
	b, err := codec.Encode(nil)
	if err != nil {
		t.Fatalf("Encode(nil) error: %v", err)
	}
	if len(b) != 0 {
		t.Fatalf("Encode(nil) = %v, want empty", b)
	}
}

func TestDecode_EmptyIsNil(t *testing.T) {
	d, err := codec.Decode([]byte{})
	if err != nil {
		t.Fatalf("Decode([]byte{}) error: %v", err)
	}
	if d != nil {
		t.Fatalf("Decode([]byte{}) = %v, want nil", d)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	d := codec.Dict{
		"b": 2,
		"a": "hello",
		"nested": codec.Dict{
			"z": 1.5,
			"y": []any{1, 2, 3},
		},
	}

	b, err := codec.Encode(d)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	got, err := codec.Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	if got["a"] != "hello" {
		t.Errorf("a = %v, want hello", got["a"])
	}
	if got["b"].(int64) != 2 {
		t.Errorf("b = %v, want 2", got["b"])
	}
	nested := got["nested"].(codec.Dict)
	if nested["z"].(float64) != 1.5 {
		t.Errorf("nested.z = %v, want 1.5", nested["z"])
	}
}

func TestEncode_DeterministicRegardlessOfKeyOrder(t *testing.T) {
	d1 := codec.Dict{"a": 1, "b": 2, "c": 3}
	d2 := codec.Dict{"c": 3, "a": 1, "b": 2}

	b1, err := codec.Encode(d1)
	if err != nil {
		t.Fatalf("Encode(d1) error: %v", err)
	}
	b2, err := codec.Encode(d2)
	if err != nil {
		t.Fatalf("Encode(d2) error: %v", err)
	}

	if string(b1) != string(b2) {
		t.Errorf("encode(d1) != encode(d2): %x vs %x", b1, b2)
	}
}

func TestWrapUnwrapResult(t *testing.T) {
	d := codec.WrapResult(nil)
	v, ok := codec.UnwrapResult(d)
	if !ok {
		t.Fatal("UnwrapResult: ok = false, want true")
	}
	if v != nil {
		t.Errorf("UnwrapResult value = %v, want nil", v)
	}

	d = codec.WrapResult(42)
	v, ok = codec.UnwrapResult(d)
	if !ok || v != 42 {
		t.Errorf("UnwrapResult = (%v, %v), want (42, true)", v, ok)
	}
}

func TestUnwrapResult_MissingKey(t *testing.T) {
	_, ok := codec.UnwrapResult(codec.Dict{"other": 1})
	if ok {
		t.Fatal("UnwrapResult: ok = true, want false for missing key")
	}
}
