package relay

import (
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"
)

// Normalize coerces an action's return value into a serializable mapping.
// Mappings pass through, other string-keyed maps are copied, and anything
// else, or anything that fails to serialize, is wrapped as {"result": text}.
func Normalize(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		if m == nil {
			return map[string]any{}
		}
		if serializable(m) {
			return m
		}
		return wrap(v)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		if serializable(out) {
			return out
		}
	}
	return wrap(v)
}

func wrap(v any) map[string]any {
	if v == nil {
		return map[string]any{"result": "null"}
	}
	return map[string]any{"result": fmt.Sprint(v)}
}

func serializable(m map[string]any) bool {
	_, err := sonic.Marshal(m)
	return err == nil
}
