package patch

import (
	"fmt"
	"strings"
)

// ValidateOperations checks every op against the allowed path patterns. A pattern segment of
// "*" matches any single segment, "-" matches an array append or index. An empty pattern set
// allows everything.
func ValidateOperations(ops []Operation, allowed []string) error {
	for i, op := range ops {
		switch op.Op {
		case OperationAdd, OperationRemove, OperationReplace:
		default:
			return fmt.Errorf("operation %d: unsupported op %q", i, op.Op)
		}
		if err := validatePathAllowed(op.Path, allowed); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

func validatePathAllowed(path string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, pattern := range allowed {
		if matchPath(pattern, path) {
			return nil
		}
	}
	return fmt.Errorf("path %q is not in the allowed paths set", path)
}

func matchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}
	want := strings.Split(pattern, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		switch want[i] {
		case "*":
		case "-":
			if got[i] != "-" && !isIndex(got[i]) {
				return false
			}
		default:
			if want[i] != got[i] {
				return false
			}
		}
	}
	return true
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
