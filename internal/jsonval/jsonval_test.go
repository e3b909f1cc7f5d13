package jsonval

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestIntRejectsFractional(t *testing.T) {
	obj := Obj(decode(t, `{"a": 7, "b": 7.5, "c": "7", "d": true}`))

	if n := Int(obj["a"]); n == nil || *n != 7 {
		t.Errorf("Int(7) = %v, want 7", n)
	}
	if n := Int(obj["b"]); n != nil {
		t.Errorf("Int(7.5) = %v, want nil", *n)
	}
	if n := Int(obj["c"]); n != nil {
		t.Errorf("Int(\"7\") = %v, want nil", *n)
	}
	if n := Int(obj["d"]); n != nil {
		t.Errorf("Int(true) = %v, want nil", *n)
	}
}

func TestBoolAsColumnValue(t *testing.T) {
	obj := Obj(decode(t, `{"t": true, "f": false, "n": 1}`))

	if b := Bool(obj["t"]); b == nil || *b != 1 {
		t.Errorf("Bool(true) = %v, want 1", b)
	}
	if b := Bool(obj["f"]); b == nil || *b != 0 {
		t.Errorf("Bool(false) = %v, want 0", b)
	}
	// Numeric truthiness must not leak in.
	if b := Bool(obj["n"]); b != nil {
		t.Errorf("Bool(1) = %v, want nil", *b)
	}
}

func TestStrListMixedTypes(t *testing.T) {
	if xs := StrList(decode(t, `["a","b"]`)); len(xs) != 2 {
		t.Errorf("StrList([a b]) = %v", xs)
	}
	if xs := StrList(decode(t, `["a", 2]`)); xs != nil {
		t.Errorf("StrList with non-string = %v, want nil", xs)
	}
	if xs := StrList(decode(t, `"a"`)); xs != nil {
		t.Errorf("StrList on scalar = %v, want nil", xs)
	}
}

func TestMarshalSorted(t *testing.T) {
	got := MarshalSorted([]string{"b", "a", "b", "c", "a"})
	if got == nil || *got != `["a","b","c"]` {
		t.Errorf("MarshalSorted = %v, want [a b c]", got)
	}
}

func TestUnmarshalList(t *testing.T) {
	s := `["x","y"]`
	if xs := UnmarshalList(&s); len(xs) != 2 {
		t.Errorf("UnmarshalList = %v", xs)
	}
	bad := `{"not":"a list"}`
	if xs := UnmarshalList(&bad); xs != nil {
		t.Errorf("UnmarshalList(object) = %v, want nil", xs)
	}
	if xs := UnmarshalList(nil); xs != nil {
		t.Errorf("UnmarshalList(nil) = %v, want nil", xs)
	}
}
