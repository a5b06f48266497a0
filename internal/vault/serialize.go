package vault

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"runtime"
	"sort"
	"time"
)

// The serialized form is JSON. Shapes JSON cannot express natively are wrapped
// in a discriminated object keyed by kindKey, carrying enough data for
// lossless reconstruction. A plain object that happens to contain kindKey is
// escaped behind a "literal" wrapper.
const kindKey = "$kind"

// Serialize renders v as JSON text. It never returns an error and never
// panics: values that defeat the encoder degrade to best-effort
// stringification, and as a last resort to an explicit opaque marker.
func Serialize(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = opaqueJSON(v)
		}
	}()

	tree := encodeValue(v, map[uintptr]struct{}{})
	data, err := json.Marshal(tree)
	if err != nil {
		return opaqueJSON(v)
	}
	return string(data)
}

func opaqueJSON(v any) string {
	repr := bestEffortString(v)
	data, err := json.Marshal(map[string]any{kindKey: "opaque", "repr": repr})
	if err != nil {
		return `{"$kind":"opaque","repr":"unserializable value"}`
	}
	return string(data)
}

func bestEffortString(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = "unserializable value"
		}
	}()
	return fmt.Sprintf("%v", v)
}

// encodeValue walks v into a json.Marshal-able tree. seen tracks container
// identities on the current path; revisiting one emits the cycle sentinel.
func encodeValue(v any, seen map[uintptr]struct{}) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return val
	case string:
		return val
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return wrap("int", "value", fmt.Sprintf("%d", val))
	case int64:
		return wrap("int", "value", fmt.Sprintf("%d", val))
	case int32:
		return wrap("int", "value", fmt.Sprintf("%d", val))
	case []byte:
		return wrap("bytes", "value", base64.StdEncoding.EncodeToString(val))
	case time.Time:
		return wrap("time", "value", val.Format(time.RFC3339Nano))
	case *time.Time:
		if val == nil {
			return nil
		}
		return wrap("time", "value", val.Format(time.RFC3339Nano))
	case *big.Int:
		if val == nil {
			return nil
		}
		return wrap("bigint", "value", val.String())
	case *regexp.Regexp:
		if val == nil {
			return nil
		}
		return wrap("pattern", "value", val.String())
	case error:
		return wrap("error", "message", val.Error())
	case FuncStub:
		return map[string]any{kindKey: "func", "name": val.Name, "arity": val.Arity}
	case []float64:
		return map[string]any{kindKey: "floats", "values": append([]float64(nil), val...)}
	case []int64:
		vals := make([]string, len(val))
		for i, n := range val {
			vals[i] = fmt.Sprintf("%d", n)
		}
		return map[string]any{kindKey: "ints", "values": vals}
	case Set:
		return encodeSet(val, seen)
	case []any:
		return encodeSlice(val, seen)
	case map[string]any:
		return encodeObject(val, seen)
	case map[any]any:
		return encodeMap(val, seen)
	}

	return encodeReflect(v, seen)
}

func wrap(kind, field, value string) map[string]any {
	return map[string]any{kindKey: kind, field: value}
}

func encodeSlice(val []any, seen map[uintptr]struct{}) any {
	if len(val) == 0 {
		return []any{}
	}
	ptr := reflect.ValueOf(val).Pointer()
	if _, ok := seen[ptr]; ok {
		return map[string]any{kindKey: "cycle"}
	}
	seen[ptr] = struct{}{}
	defer delete(seen, ptr)

	out := make([]any, len(val))
	for i, e := range val {
		out[i] = encodeValue(e, seen)
	}
	return out
}

func encodeObject(val map[string]any, seen map[uintptr]struct{}) any {
	ptr := reflect.ValueOf(val).Pointer()
	if _, ok := seen[ptr]; ok {
		return map[string]any{kindKey: "cycle"}
	}
	seen[ptr] = struct{}{}
	defer delete(seen, ptr)

	fields := make(map[string]any, len(val))
	for k, e := range val {
		fields[k] = encodeValue(e, seen)
	}
	if _, reserved := val[kindKey]; reserved {
		return map[string]any{kindKey: "literal", "fields": fields}
	}
	return fields
}

func encodeMap(val map[any]any, seen map[uintptr]struct{}) any {
	ptr := reflect.ValueOf(val).Pointer()
	if _, ok := seen[ptr]; ok {
		return map[string]any{kindKey: "cycle"}
	}
	seen[ptr] = struct{}{}
	defer delete(seen, ptr)

	entries := make([][2]any, 0, len(val))
	for k, e := range val {
		entries = append(entries, [2]any{encodeValue(k, seen), encodeValue(e, seen)})
	}
	sortEntries(entries)
	out := make([]any, len(entries))
	for i, kv := range entries {
		out[i] = []any{kv[0], kv[1]}
	}
	return map[string]any{kindKey: "map", "entries": out}
}

func encodeSet(val Set, seen map[uintptr]struct{}) any {
	ptr := reflect.ValueOf(val).Pointer()
	if _, ok := seen[ptr]; ok {
		return map[string]any{kindKey: "cycle"}
	}
	seen[ptr] = struct{}{}
	defer delete(seen, ptr)

	values := make([]any, 0, len(val))
	for m := range val {
		values = append(values, encodeValue(m, seen))
	}
	sort.Slice(values, func(i, j int) bool {
		return stableKey(values[i]) < stableKey(values[j])
	})
	return map[string]any{kindKey: "set", "values": values}
}

// encodeReflect covers typed slices, maps, structs and funcs that did not
// match a concrete case.
func encodeReflect(v any, seen map[uintptr]struct{}) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16:
		return wrap("int", "value", fmt.Sprintf("%d", rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return wrap("int", "value", fmt.Sprintf("%d", rv.Uint()))
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			ptr := rv.Pointer()
			if _, ok := seen[ptr]; ok {
				return map[string]any{kindKey: "cycle"}
			}
			seen[ptr] = struct{}{}
			defer delete(seen, ptr)
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = encodeValue(rv.Index(i).Interface(), seen)
		}
		return out
	case reflect.Map:
		ptr := rv.Pointer()
		if _, ok := seen[ptr]; ok {
			return map[string]any{kindKey: "cycle"}
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)
		if rv.Type().Key().Kind() == reflect.String {
			fields := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				fields[iter.Key().String()] = encodeValue(iter.Value().Interface(), seen)
			}
			return fields
		}
		entries := make([][2]any, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries = append(entries, [2]any{
				encodeValue(iter.Key().Interface(), seen),
				encodeValue(iter.Value().Interface(), seen),
			})
		}
		sortEntries(entries)
		out := make([]any, len(entries))
		for i, kv := range entries {
			out[i] = []any{kv[0], kv[1]}
		}
		return map[string]any{kindKey: "map", "entries": out}
	case reflect.Struct:
		fields := make(map[string]any)
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if !rt.Field(i).IsExported() {
				continue
			}
			fields[rt.Field(i).Name] = encodeValue(rv.Field(i).Interface(), seen)
		}
		return fields
	case reflect.Pointer, reflect.Interface:
		elem := rv.Elem()
		if !elem.IsValid() {
			return nil
		}
		ptr := rv.Pointer()
		if _, ok := seen[ptr]; ok {
			return map[string]any{kindKey: "cycle"}
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)
		return encodeValue(elem.Interface(), seen)
	case reflect.Func:
		name := runtime.FuncForPC(rv.Pointer()).Name()
		return map[string]any{kindKey: "func", "name": name, "arity": rv.Type().NumIn()}
	}
	return map[string]any{kindKey: "opaque", "repr": bestEffortString(v)}
}

func sortEntries(entries [][2]any) {
	sort.Slice(entries, func(i, j int) bool {
		return stableKey(entries[i][0]) < stableKey(entries[j][0])
	})
}

func stableKey(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// HashableKey makes a value safe for use as a Go map key or set member.
// Composite values (slices, maps, sets) have no hash and would panic on
// insertion; they degrade to their serialized form.
func HashableKey(v any) any {
	if v == nil {
		return v
	}
	if reflect.TypeOf(v).Comparable() {
		return v
	}
	return Serialize(v)
}

// ErrCycle marks a value position that referred back to one of its ancestors.
var ErrCycle = errors.New("cyclic reference")

// CycleSentinel is the deserialized stand-in for a cycle position.
type CycleSentinel struct{}

// Deserialize parses serialized text back into a runtime value, reviving the
// discriminated wrappers.
func Deserialize(text string) (any, error) {
	var tree any
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		return nil, fmt.Errorf("failed to parse vault payload: %w", err)
	}
	return decodeValue(tree)
}

func decodeValue(tree any) (any, error) {
	switch val := tree.(type) {
	case nil, bool, string, float64:
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			d, err := decodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case map[string]any:
		kind, _ := val[kindKey].(string)
		if kind == "" {
			return decodeObject(val)
		}
		return decodeWrapper(kind, val)
	}
	return nil, fmt.Errorf("unexpected payload node %T", tree)
}

func decodeObject(val map[string]any) (any, error) {
	out := make(map[string]any, len(val))
	for k, e := range val {
		d, err := decodeValue(e)
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

func decodeWrapper(kind string, val map[string]any) (any, error) {
	switch kind {
	case "literal":
		fields, _ := val["fields"].(map[string]any)
		return decodeObject(fields)
	case "int":
		s, _ := val["value"].(string)
		var n int64
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return nil, fmt.Errorf("bad int payload %q: %w", s, err)
		}
		return n, nil
	case "bytes":
		s, _ := val["value"].(string)
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("bad bytes payload: %w", err)
		}
		return data, nil
	case "time":
		s, _ := val["value"].(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("bad time payload %q: %w", s, err)
		}
		return t, nil
	case "bigint":
		s, _ := val["value"].(string)
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("bad bigint payload %q", s)
		}
		return n, nil
	case "pattern":
		s, _ := val["value"].(string)
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("bad pattern payload %q: %w", s, err)
		}
		return re, nil
	case "error":
		msg, _ := val["message"].(string)
		return errors.New(msg), nil
	case "func":
		name, _ := val["name"].(string)
		arity, _ := val["arity"].(float64)
		return FuncStub{Name: name, Arity: int(arity)}, nil
	case "floats":
		raw, _ := val["values"].([]any)
		out := make([]float64, len(raw))
		for i, e := range raw {
			f, ok := e.(float64)
			if !ok {
				return nil, fmt.Errorf("bad floats payload at %d", i)
			}
			out[i] = f
		}
		return out, nil
	case "ints":
		raw, _ := val["values"].([]any)
		out := make([]int64, len(raw))
		for i, e := range raw {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("bad ints payload at %d", i)
			}
			if _, err := fmt.Sscanf(s, "%d", &out[i]); err != nil {
				return nil, fmt.Errorf("bad ints payload %q: %w", s, err)
			}
		}
		return out, nil
	case "map":
		raw, _ := val["entries"].([]any)
		out := make(map[any]any, len(raw))
		for _, e := range raw {
			kv, ok := e.([]any)
			if !ok || len(kv) != 2 {
				return nil, fmt.Errorf("bad map entry %v", e)
			}
			k, err := decodeValue(kv[0])
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(kv[1])
			if err != nil {
				return nil, err
			}
			out[HashableKey(k)] = v
		}
		return out, nil
	case "set":
		raw, _ := val["values"].([]any)
		out := make(Set, len(raw))
		for _, e := range raw {
			m, err := decodeValue(e)
			if err != nil {
				return nil, err
			}
			out[HashableKey(m)] = struct{}{}
		}
		return out, nil
	case "cycle":
		return CycleSentinel{}, nil
	case "opaque":
		repr, _ := val["repr"].(string)
		return repr, nil
	}
	return nil, fmt.Errorf("unknown payload wrapper %q", kind)
}
