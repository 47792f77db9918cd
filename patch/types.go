package patch

// Operation is one RFC 6902 JSON Patch operation.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

const (
	OperationAdd     = "add"
	OperationRemove  = "remove"
	OperationReplace = "replace"
)

// Prefix moves every operation under the JSON pointer prefix, e.g. "/3" for the fourth array item.
func Prefix(prefix string, ops []Operation) []Operation {
	out := make([]Operation, len(ops))
	for i, op := range ops {
		op.Path = prefix + op.Path
		out[i] = op
	}
	return out
}
