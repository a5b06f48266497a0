package vault

import (
	"errors"
	"math/big"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"
)

func roundTrip(t *testing.T, val any) any {
	t.Helper()
	payload := Serialize(val)
	out, err := Deserialize(payload)
	if err != nil {
		t.Fatalf("deserialize failed: %v (payload %s)", err, payload)
	}
	return out
}

func TestRoundTripScalars(t *testing.T) {
	cases := []any{
		true,
		false,
		"plain string",
		3.25,
	}
	for _, val := range cases {
		got := roundTrip(t, val)
		if !reflect.DeepEqual(got, val) {
			t.Errorf("round trip of %#v produced %#v", val, got)
		}
	}
	if got := roundTrip(t, nil); got != nil {
		t.Errorf("round trip of nil produced %#v", got)
	}
}

func TestRoundTripIntPreservesInt64(t *testing.T) {
	// Large enough that a float64 detour would lose precision.
	val := int64(9007199254740993)
	got := roundTrip(t, val)
	if got != val {
		t.Errorf("expected %d, got %#v", val, got)
	}
}

func TestRoundTripBytes(t *testing.T) {
	val := []byte{0x00, 0xff, 0x10, 0x20}
	got := roundTrip(t, val)
	b, ok := got.([]byte)
	if !ok {
		t.Fatalf("expected []byte, got %T", got)
	}
	if !reflect.DeepEqual(b, val) {
		t.Errorf("bytes differ: %v vs %v", b, val)
	}
}

func TestRoundTripTime(t *testing.T) {
	val := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	got := roundTrip(t, val)
	ts, ok := got.(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", got)
	}
	if !ts.Equal(val) {
		t.Errorf("time differs: %v vs %v", ts, val)
	}
}

func TestRoundTripBigInt(t *testing.T) {
	val, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	got := roundTrip(t, val)
	n, ok := got.(*big.Int)
	if !ok {
		t.Fatalf("expected *big.Int, got %T", got)
	}
	if n.Cmp(val) != 0 {
		t.Errorf("bigint differs: %s vs %s", n, val)
	}
}

func TestRoundTripPattern(t *testing.T) {
	val := regexp.MustCompile(`^v-[0-9a-f]{8}$`)
	got := roundTrip(t, val)
	re, ok := got.(*regexp.Regexp)
	if !ok {
		t.Fatalf("expected *regexp.Regexp, got %T", got)
	}
	if re.String() != val.String() {
		t.Errorf("pattern differs: %s vs %s", re, val)
	}
}

func TestRoundTripError(t *testing.T) {
	got := roundTrip(t, errors.New("boom"))
	e, ok := got.(error)
	if !ok {
		t.Fatalf("expected error, got %T", got)
	}
	if e.Error() != "boom" {
		t.Errorf("error message differs: %q", e.Error())
	}
}

func TestRoundTripFuncStub(t *testing.T) {
	got := roundTrip(t, FuncStub{Name: "transform", Arity: 2})
	stub, ok := got.(FuncStub)
	if !ok {
		t.Fatalf("expected FuncStub, got %T", got)
	}
	if stub.Name != "transform" || stub.Arity != 2 {
		t.Errorf("stub differs: %+v", stub)
	}
}

func TestRoundTripNestedObject(t *testing.T) {
	val := map[string]any{
		"name":  "trial-7",
		"count": int64(42),
		"tags":  []any{"alpha", "beta"},
		"inner": map[string]any{"ok": true},
	}
	got := roundTrip(t, val)
	if !reflect.DeepEqual(got, val) {
		t.Errorf("object differs:\n got %#v\nwant %#v", got, val)
	}
}

func TestRoundTripAssocMap(t *testing.T) {
	val := map[any]any{
		int64(1): "one",
		"two":    int64(2),
	}
	got := roundTrip(t, val)
	m, ok := got.(map[any]any)
	if !ok {
		t.Fatalf("expected map[any]any, got %T", got)
	}
	if m[int64(1)] != "one" || m["two"] != int64(2) {
		t.Errorf("map differs: %#v", m)
	}
}

func TestRoundTripSet(t *testing.T) {
	val := Set{"a": {}, int64(3): {}}
	got := roundTrip(t, val)
	s, ok := got.(Set)
	if !ok {
		t.Fatalf("expected Set, got %T", got)
	}
	if len(s) != 2 {
		t.Fatalf("expected 2 members, got %d", len(s))
	}
	if _, ok := s["a"]; !ok {
		t.Error("member \"a\" missing")
	}
	if _, ok := s[int64(3)]; !ok {
		t.Error("member 3 missing")
	}
}

func TestRoundTripObjectWithKindKey(t *testing.T) {
	// A user object that happens to carry the discriminator key must not be
	// mistaken for a wrapper.
	val := map[string]any{"$kind": "custom", "x": int64(1)}
	got := roundTrip(t, val)
	if !reflect.DeepEqual(got, val) {
		t.Errorf("escaped object differs: %#v", got)
	}
}

func TestSerializeCycle(t *testing.T) {
	val := map[string]any{"name": "loop"}
	val["self"] = val

	payload := Serialize(val)
	got, err := Deserialize(payload)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", got)
	}
	if m["name"] != "loop" {
		t.Errorf("sibling key lost: %#v", m)
	}
	if _, ok := m["self"].(CycleSentinel); !ok {
		t.Errorf("expected cycle sentinel at self, got %T", m["self"])
	}
}

func TestDeserializeGarbage(t *testing.T) {
	if _, err := Deserialize("{not json"); err == nil {
		t.Error("expected an error for malformed payload")
	}
}

func TestSerializeMapDeterministic(t *testing.T) {
	val := map[string]any{"z": int64(1), "a": int64(2), "m": int64(3)}
	first := Serialize(val)
	for i := 0; i < 10; i++ {
		if s := Serialize(val); s != first {
			t.Fatalf("serialization not deterministic:\n%s\n%s", first, s)
		}
	}
	if !strings.Contains(first, `"a"`) {
		t.Errorf("unexpected payload shape: %s", first)
	}
}

func TestDeserializeCompositeMapKey(t *testing.T) {
	payload := `{"$kind":"map","entries":[[["a",1],"x"]]}`
	got, err := Deserialize(payload)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	m, ok := got.(map[any]any)
	if !ok || len(m) != 1 {
		t.Fatalf("expected one-entry map, got %#v", got)
	}
	for k, v := range m {
		if _, ok := k.(string); !ok {
			t.Errorf("composite key should degrade to a string, got %T", k)
		}
		if v != "x" {
			t.Errorf("value = %v", v)
		}
	}
}

func TestDeserializeCompositeSetMember(t *testing.T) {
	payload := `{"$kind":"set","values":[["a","b"]]}`
	got, err := Deserialize(payload)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	s, ok := got.(Set)
	if !ok || len(s) != 1 {
		t.Fatalf("expected one-member set, got %#v", got)
	}
	for m := range s {
		if _, ok := m.(string); !ok {
			t.Errorf("composite member should degrade to a string, got %T", m)
		}
	}
}

func TestHashableKeyPassesScalars(t *testing.T) {
	for _, v := range []any{nil, true, int64(7), 1.5, "k"} {
		if got := HashableKey(v); got != v {
			t.Errorf("HashableKey(%v) = %v", v, got)
		}
	}
	if _, ok := HashableKey([]any{int64(1)}).(string); !ok {
		t.Error("slice key should degrade to a string")
	}
}
