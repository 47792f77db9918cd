package agent

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tbxark/rneagent/types"
)

//go:embed data/flow.json
var defaultFlow []byte

// FlowDefinition is the ordered list of slots the dialogue collects.
type FlowDefinition struct {
	Slots []types.SlotSpec
	index map[types.SlotKey]int
}

func NewFlowDefinition(slots []types.SlotSpec) (*FlowDefinition, error) {
	f := &FlowDefinition{
		Slots: append([]types.SlotSpec(nil), slots...),
		index: make(map[types.SlotKey]int, len(slots)),
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: no slots", ErrInvalidFlow)
	}
	for i, s := range f.Slots {
		if strings.TrimSpace(string(s.Key)) == "" {
			return nil, fmt.Errorf("%w: slot %d has no key", ErrInvalidFlow, i)
		}
		if _, dup := f.index[s.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate slot %q", ErrInvalidFlow, s.Key)
		}
		if !s.Validation.Valid() {
			return nil, fmt.Errorf("%w: slot %q has unknown validation %q", ErrInvalidFlow, s.Key, s.Validation)
		}
		if s.Prompt == "" || s.RetryPrompt == "" {
			return nil, fmt.Errorf("%w: slot %q needs prompt and retry_prompt", ErrInvalidFlow, s.Key)
		}
		f.index[s.Key] = i
	}
	for _, s := range f.Slots {
		refs := append([]types.SlotKey(nil), s.Requires...)
		if s.ConditionalOn != nil {
			refs = append(refs, s.ConditionalOn.SlotKey)
		}
		for _, ref := range refs {
			if _, ok := f.index[ref]; !ok || ref == s.Key {
				return nil, fmt.Errorf("%w: slot %q refers to %q", ErrInvalidFlow, s.Key, ref)
			}
		}
	}
	return f, nil
}

func ParseFlowDefinition(data []byte) (*FlowDefinition, error) {
	var slots []types.SlotSpec
	if err := sonic.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("decode flow definition: %w", err)
	}
	return NewFlowDefinition(slots)
}

func LoadFlowDefinition(path string) (*FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow definition: %w", err)
	}
	return ParseFlowDefinition(data)
}

// DefaultFlowDefinition returns the registry dialogue bundled with the binary.
func DefaultFlowDefinition() (*FlowDefinition, error) {
	return ParseFlowDefinition(defaultFlow)
}

func (f *FlowDefinition) Slot(key types.SlotKey) (types.SlotSpec, bool) {
	i, ok := f.index[key]
	if !ok {
		return types.SlotSpec{}, false
	}
	return f.Slots[i], true
}

func (f *FlowDefinition) Keys() []types.SlotKey {
	keys := make([]types.SlotKey, len(f.Slots))
	for i, s := range f.Slots {
		keys[i] = s.Key
	}
	return keys
}

// NextMissing returns the first slot, in flow order, that exists for slots and is not filled.
func (f *FlowDefinition) NextMissing(slots types.Slots) (types.SlotSpec, bool) {
	for _, s := range f.Slots {
		if s.ConditionMet(slots) && !s.Filled(slots) {
			return s, true
		}
	}
	return types.SlotSpec{}, false
}

// Extractable reports whether free-form extraction may run for spec: it must be missing, its
// condition met and every slot it requires filled.
func (f *FlowDefinition) Extractable(spec types.SlotSpec, slots types.Slots) bool {
	if spec.Filled(slots) || !spec.ConditionMet(slots) {
		return false
	}
	for _, key := range spec.Requires {
		req, ok := f.Slot(key)
		if !ok || !req.Filled(slots) {
			return false
		}
	}
	return true
}
