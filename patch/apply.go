package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Apply runs ops against the JSON form of current and decodes the result back into T.
// Ops are first reconciled with the document, see Reconcile.
func Apply[T any](current T, ops []Operation) (T, error) {
	var zero T
	if len(ops) == 0 {
		return current, nil
	}

	doc, err := sonic.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("encode document: %w", err)
	}
	var tree any
	if err := sonic.Unmarshal(doc, &tree); err != nil {
		return zero, fmt.Errorf("decode document: %w", err)
	}

	raw, err := sonic.Marshal(Reconcile(tree, ops))
	if err != nil {
		return zero, fmt.Errorf("encode operations: %w", err)
	}
	p, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return zero, fmt.Errorf("decode operations: %w", err)
	}
	patched, err := p.Apply(doc)
	if err != nil {
		return zero, fmt.Errorf("apply operations: %w", err)
	}

	var out T
	if err := sonic.Unmarshal(patched, &out); err != nil {
		return zero, fmt.Errorf("decode patched document: %w", err)
	}
	return out, nil
}

// Reconcile adapts ops to the decoded document tree: a replace of an absent object member
// becomes an add, and a remove of an absent path is dropped. Entries serialized with
// omitempty fields rely on this.
func Reconcile(tree any, ops []Operation) []Operation {
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		_, found := lookup(tree, op.Path)
		switch {
		case op.Op == OperationReplace && !found:
			op.Op = OperationAdd
		case op.Op == OperationRemove && !found:
			continue
		}
		out = append(out, op)
	}
	return out
}

// lookup resolves a JSON pointer inside a decoded document.
func lookup(node any, pointer string) (any, bool) {
	if pointer == "" {
		return node, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}
	for _, token := range strings.Split(pointer[1:], "/") {
		token = unescapeJSONPointer(token)
		switch v := node.(type) {
		case map[string]any:
			child, ok := v[token]
			if !ok {
				return nil, false
			}
			node = child
		case []any:
			i, err := strconv.Atoi(token)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			node = v[i]
		default:
			return nil, false
		}
	}
	return node, true
}

func unescapeJSONPointer(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}
