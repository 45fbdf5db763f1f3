package functions

import "fmt"

// Success builds the uniform success record. extra is a flat key/value list.
func Success(message string, extra ...any) map[string]any {
	result := map[string]any{"status": "success", "message": message}
	addPairs(result, extra)
	return result
}

// Failure builds the uniform error record
func Failure(err error) map[string]any {
	return map[string]any{"status": "error", "message": err.Error()}
}

func addPairs(dst map[string]any, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		dst[fmt.Sprint(kv[i])] = kv[i+1]
	}
}
