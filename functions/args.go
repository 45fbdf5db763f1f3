package functions

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrMissingArg is returned when a required argument is absent
var ErrMissingArg = errors.New("missing argument")

// String returns a required string argument
func String(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingArg, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %s: expected string, got %T", key, v)
	}
	return s, nil
}

// StringOr returns a string argument or def when absent
func StringOr(args map[string]any, key, def string) (string, error) {
	if v, ok := args[key]; !ok || v == nil {
		return def, nil
	}
	return String(args, key)
}

// Int returns a required integer argument. JSON numbers arrive as float64;
// fractional values are rejected.
func Int(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingArg, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float32:
		return floatToInt(key, float64(n))
	case float64:
		return floatToInt(key, n)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("argument %s: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("argument %s: expected integer, got %T", key, v)
	}
}

// IntOr returns an integer argument or def when absent
func IntOr(args map[string]any, key string, def int) (int, error) {
	if v, ok := args[key]; !ok || v == nil {
		return def, nil
	}
	return Int(args, key)
}

// Strings returns a required list-of-strings argument
func Strings(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingArg, key)
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %s[%d]: expected string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument %s: expected list of strings, got %T", key, v)
	}
}

func floatToInt(key string, f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("argument %s: %v is not an integer", key, f)
	}
	return int(f), nil
}

// BoolOr returns a boolean argument or def when absent. "true"/"false"
// strings are accepted.
func BoolOr(args map[string]any, key string, def bool) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("argument %s: %w", key, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("argument %s: expected bool, got %T", key, v)
	}
}
