package vault

import (
	"math/big"
	"reflect"
	"regexp"
	"time"
)

// Kind is the closed classification a stored value falls into. Classification
// happens once, at store time, through Classify.
type Kind string

const (
	KindNull   Kind = "null"
	KindArray  Kind = "array"
	KindObject Kind = "object"
	KindMap    Kind = "map"    // associative map with non-string keys
	KindSet    Kind = "set"    // unique-set
	KindTime   Kind = "time"   // calendar timestamp
	KindBytes  Kind = "bytes"  // binary buffer
	KindString Kind = "string"
	KindFunc   Kind = "func"
	KindBigInt Kind = "bigint"
	KindOther  Kind = "other"
)

// Set is the vault's unique-set representation. Members must be hashable
// scalars (string, int64, float64, bool).
type Set map[any]struct{}

// FuncStub stands in for a function value. Functions cannot be serialized;
// the stub round-trips instead.
type FuncStub struct {
	Name  string `json:"name"`
	Arity int    `json:"arity"`
}

// Classify maps a runtime value onto the closed Kind set.
func Classify(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case []byte:
		return KindBytes
	case time.Time, *time.Time:
		return KindTime
	case Set:
		return KindSet
	case *big.Int:
		return KindBigInt
	case FuncStub:
		return KindFunc
	case []any, []float64, []int64, []int:
		return KindArray
	case map[string]any:
		return KindObject
	case map[any]any:
		return KindMap
	case *regexp.Regexp, error:
		return KindOther
	case bool, int, int64, float64:
		return KindOther
	}

	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Array:
		return KindArray
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return KindObject
		}
		return KindMap
	case reflect.Struct:
		return KindObject
	case reflect.Func:
		return KindFunc
	}
	return KindOther
}

// composite reports whether a kind represents structured or otherwise
// non-inlinable data.
func composite(k Kind) bool {
	switch k {
	case KindArray, KindObject, KindMap, KindSet, KindTime, KindBytes, KindFunc, KindBigInt:
		return true
	}
	return false
}
