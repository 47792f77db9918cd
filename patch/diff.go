package patch

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// Diff returns the operations that bring the top-level fields of current to the non-empty
// values of target. Empty target fields leave current untouched.
func Diff[T any](current, target T) ([]Operation, error) {
	currentMap, err := toMap(current)
	if err != nil {
		return nil, fmt.Errorf("failed to convert current value: %w", err)
	}
	targetMap, err := toMap(target)
	if err != nil {
		return nil, fmt.Errorf("failed to convert target value: %w", err)
	}

	ops := make([]Operation, 0)
	for _, key := range sortedKeys(targetMap) {
		value := targetMap[key]
		if isZeroValue(value) {
			continue
		}
		path := "/" + escapeJSONPointer(key)
		old, exists := currentMap[key]
		switch {
		case !exists:
			ops = append(ops, Operation{Op: OperationAdd, Path: path, Value: value})
		case !reflect.DeepEqual(old, value):
			ops = append(ops, Operation{Op: OperationReplace, Path: path, Value: value})
		}
	}
	return ops, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeJSONPointer(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

func isZeroValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case float64:
		return val == 0
	case bool:
		return !val
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
