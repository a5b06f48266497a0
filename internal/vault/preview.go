package vault

import (
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
)

// renderPreview produces a compact one-line rendering of v, bounded by
// charLimit characters and itemLimit members per container. The second result
// reports whether anything was cut.
func renderPreview(v any, charLimit, itemLimit int) (string, bool) {
	s, truncated := renderTop(v, itemLimit)
	if clipped, cut := clipRunes(s, charLimit); cut {
		return clipped + "…", true
	}
	return s, truncated
}

func renderTop(v any, itemLimit int) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "null", false
	case string:
		return strings.ReplaceAll(val, "\n", "\\n"), false
	case []any:
		return renderList(val, itemLimit)
	case map[string]any:
		return renderObject(val, itemLimit)
	case map[any]any:
		return renderAssoc(val, itemLimit)
	case Set:
		return renderSet(val, itemLimit)
	}
	return renderInline(v), false
}

func renderObject(val map[string]any, itemLimit int) (string, bool) {
	keys := make([]string, 0, len(val))
	for k := range val {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	truncated := false
	if itemLimit > 0 && len(keys) > itemLimit {
		keys = keys[:itemLimit]
		truncated = true
	}

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, renderInline(val[k])))
	}
	if truncated {
		parts = append(parts, "…")
	}
	if len(parts) == 0 {
		return "{}", false
	}
	return "{ " + strings.Join(parts, ", ") + " }", truncated
}

func renderAssoc(val map[any]any, itemLimit int) (string, bool) {
	entries := make([]string, 0, len(val))
	for k, e := range val {
		entries = append(entries, fmt.Sprintf("%s => %s", renderInline(k), renderInline(e)))
	}
	sort.Strings(entries)

	truncated := false
	if itemLimit > 0 && len(entries) > itemLimit {
		entries = entries[:itemLimit]
		truncated = true
	}
	if truncated {
		entries = append(entries, "…")
	}
	return fmt.Sprintf("Map(%d){ %s }", len(val), strings.Join(entries, ", ")), truncated
}

func renderSet(val Set, itemLimit int) (string, bool) {
	members := make([]string, 0, len(val))
	for m := range val {
		members = append(members, renderInline(m))
	}
	sort.Strings(members)

	truncated := false
	if itemLimit > 0 && len(members) > itemLimit {
		members = members[:itemLimit]
		truncated = true
	}
	if truncated {
		members = append(members, "…")
	}
	return fmt.Sprintf("Set(%d){ %s }", len(val), strings.Join(members, ", ")), truncated
}

func renderList(val []any, itemLimit int) (string, bool) {
	items := val
	truncated := false
	if itemLimit > 0 && len(items) > itemLimit {
		items = items[:itemLimit]
		truncated = true
	}
	parts := make([]string, 0, len(items)+1)
	for _, e := range items {
		parts = append(parts, renderInline(e))
	}
	if truncated {
		parts = append(parts, "…")
	}
	return "[" + strings.Join(parts, ", ") + "]", truncated
}

// renderInline renders a nested value in summary form: composites collapse to
// a sized marker, scalars print directly.
func renderInline(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		s := strings.ReplaceAll(val, "\n", "\\n")
		if clipped, cut := clipRunes(s, 40); cut {
			s = clipped + "…"
		}
		return fmt.Sprintf("%q", s)
	case bool:
		return fmt.Sprintf("%t", val)
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case []any:
		return fmt.Sprintf("Array(%d)", len(val))
	case []float64:
		return fmt.Sprintf("Array(%d)", len(val))
	case []int64:
		return fmt.Sprintf("Array(%d)", len(val))
	case map[string]any:
		return fmt.Sprintf("Object(%d)", len(val))
	case map[any]any:
		return fmt.Sprintf("Map(%d)", len(val))
	case Set:
		return fmt.Sprintf("Set(%d)", len(val))
	case []byte:
		return fmt.Sprintf("Bytes(%d)", len(val))
	case time.Time:
		return val.Format(time.RFC3339)
	case *big.Int:
		return val.String()
	case *regexp.Regexp:
		return "/" + val.String() + "/"
	case FuncStub:
		return fmt.Sprintf("func %s()", val.Name)
	case error:
		return fmt.Sprintf("error(%q)", val.Error())
	case CycleSentinel:
		return "[cycle]"
	}

	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("Array(%d)", rv.Len())
	case reflect.Map:
		return fmt.Sprintf("Object(%d)", rv.Len())
	case reflect.Struct:
		return fmt.Sprintf("Object(%d)", rv.NumField())
	case reflect.Func:
		return "func()"
	}
	return fmt.Sprintf("%v", v)
}

// clipRunes cuts s to at most limit runes. limit <= 0 means no limit.
func clipRunes(s string, limit int) (string, bool) {
	if limit <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]), true
}
