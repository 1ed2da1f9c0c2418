package rules

import "strings"

// GetNestedValue resolves a dot-separated path such as "user.address.city".
// The second result is false when a segment is missing, when an
// intermediate value is not an object, or when the leaf is null.
func GetNestedValue(payload map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = payload

	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}

	if cur == nil {
		return nil, false
	}
	return cur, true
}
