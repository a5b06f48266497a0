package sandbox

import (
	"fmt"
	"math/big"
	"regexp"
	"time"

	"go.starlark.net/starlark"

	"github.com/openclaw/statecraft/internal/vault"
)

// fromStarlark converts a Starlark value into the vault's value domain.
func fromStarlark(v starlark.Value) any {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(val)
	case starlark.Int:
		if n, ok := val.Int64(); ok {
			return n
		}
		return new(big.Int).Set(val.BigInt())
	case starlark.Float:
		return float64(val)
	case starlark.String:
		return string(val)
	case starlark.Bytes:
		return []byte(val)
	case starlark.Tuple:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = fromStarlark(e)
		}
		return out
	case *starlark.List:
		out := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			out[i] = fromStarlark(val.Index(i))
		}
		return out
	case *starlark.Dict:
		items := val.Items()
		allString := true
		for _, kv := range items {
			if _, ok := kv[0].(starlark.String); !ok {
				allString = false
				break
			}
		}
		if allString {
			out := make(map[string]any, len(items))
			for _, kv := range items {
				out[string(kv[0].(starlark.String))] = fromStarlark(kv[1])
			}
			return out
		}
		out := make(map[any]any, len(items))
		for _, kv := range items {
			out[vault.HashableKey(fromStarlark(kv[0]))] = fromStarlark(kv[1])
		}
		return out
	case *starlark.Set:
		out := make(vault.Set, val.Len())
		iter := val.Iterate()
		defer iter.Done()
		var e starlark.Value
		for iter.Next(&e) {
			out[vault.HashableKey(fromStarlark(e))] = struct{}{}
		}
		return out
	case starlark.Callable:
		return vault.FuncStub{Name: val.Name()}
	}
	return fmt.Sprintf("%v", v)
}

// toStarlark converts a vault value into its Starlark rendering. Shapes with
// no Starlark analog degrade to readable strings.
func toStarlark(v any) starlark.Value {
	switch val := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(val)
	case int:
		return starlark.MakeInt(val)
	case int64:
		return starlark.MakeInt64(val)
	case float64:
		return starlark.Float(val)
	case string:
		return starlark.String(val)
	case []byte:
		return starlark.Bytes(val)
	case *big.Int:
		return starlark.MakeBigInt(val)
	case time.Time:
		return starlark.String(val.Format(time.RFC3339Nano))
	case *regexp.Regexp:
		return starlark.String(val.String())
	case error:
		return starlark.String(val.Error())
	case vault.FuncStub:
		return starlark.String(fmt.Sprintf("<func %s>", val.Name))
	case vault.CycleSentinel:
		return starlark.String("[cycle]")
	case []float64:
		elems := make([]starlark.Value, len(val))
		for i, e := range val {
			elems[i] = starlark.Float(e)
		}
		return starlark.NewList(elems)
	case []int64:
		elems := make([]starlark.Value, len(val))
		for i, e := range val {
			elems[i] = starlark.MakeInt64(e)
		}
		return starlark.NewList(elems)
	case []any:
		elems := make([]starlark.Value, len(val))
		for i, e := range val {
			elems[i] = toStarlark(e)
		}
		return starlark.NewList(elems)
	case map[string]any:
		d := starlark.NewDict(len(val))
		for k, e := range val {
			d.SetKey(starlark.String(k), toStarlark(e))
		}
		return d
	case map[any]any:
		d := starlark.NewDict(len(val))
		for k, e := range val {
			d.SetKey(toStarlark(k), toStarlark(e))
		}
		return d
	case vault.Set:
		s := starlark.NewSet(len(val))
		for m := range val {
			s.Insert(toStarlark(m))
		}
		return s
	}
	return starlark.String(fmt.Sprintf("%v", v))
}
