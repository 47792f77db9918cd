package types

import (
	"strings"
	"time"
)

type SlotKey string

const (
	SlotIntent       SlotKey = "intent_type"
	SlotEntityType   SlotKey = "type_ent"
	SlotChoice       SlotKey = "needs_documents_or_penalty"
	SlotCreationDate SlotKey = "creation_date"
	SlotUpdateAction SlotKey = "update_action"
)

// Slot values understood by the registry. They are stored verbatim.
const (
	IntentCreation = "création"
	IntentUpdate   = "mise à jour"
	IntentUnknown  = "unknown"

	ChoiceDocuments = "documents"
	ChoicePenalty   = "amende"
)

// DateLayout is the canonical day/month/year form of a date slot.
const DateLayout = "02/01/2006"

type ValidationKind string

const (
	KindIntent       ValidationKind = "intent"
	KindEntityType   ValidationKind = "entity_type"
	KindBinaryChoice ValidationKind = "binary_choice"
	KindDate         ValidationKind = "date"
	KindCatalog      ValidationKind = "catalog"
)

func (k ValidationKind) Valid() bool {
	switch k {
	case KindIntent, KindEntityType, KindBinaryChoice, KindDate, KindCatalog:
		return true
	default:
		return false
	}
}

type Condition struct {
	SlotKey SlotKey `json:"slot_key"`
	Equals  string  `json:"equals"`
}

type SlotSpec struct {
	Key           SlotKey        `json:"slot_key"`
	Prompt        string         `json:"prompt"`
	RetryPrompt   string         `json:"retry_prompt"`
	Validation    ValidationKind `json:"validation"`
	ConditionalOn *Condition     `json:"conditional_on,omitempty"`
	// Requires lists slots that must be resolved before free-form extraction of this slot runs.
	Requires []SlotKey `json:"requires,omitempty"`
}

// ConditionMet reports whether the slot exists at all for the given slot values.
func (s SlotSpec) ConditionMet(slots Slots) bool {
	if s.ConditionalOn == nil {
		return true
	}
	v, ok := slots.Get(s.ConditionalOn.SlotKey)
	return ok && v == s.ConditionalOn.Equals
}

// Filled reports whether the slot holds a usable value. The intent sentinel "unknown" counts as unset.
func (s SlotSpec) Filled(slots Slots) bool {
	v, ok := slots.Get(s.Key)
	if !ok {
		return false
	}
	if s.Validation == KindIntent && strings.EqualFold(v, IntentUnknown) {
		return false
	}
	return true
}

type Slots map[SlotKey]string

func (s Slots) Get(key SlotKey) (string, bool) {
	v, ok := s[key]
	return v, ok && v != ""
}

func (s Slots) Clone() Slots {
	out := make(Slots, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type Session struct {
	ID         string    `json:"id"`
	Slots      Slots     `json:"slots"`
	Awaiting   SlotKey   `json:"awaiting_slot,omitempty"`
	Candidates []string  `json:"candidates,omitempty"`
	FollowUp   string    `json:"follow_up,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Slots = s.Slots.Clone()
	if s.Candidates != nil {
		out.Candidates = append([]string(nil), s.Candidates...)
	}
	return &out
}

type ResultKind int

const (
	ResultInvalid ResultKind = iota
	ResultValid
	ResultFollowUp
)

func (k ResultKind) String() string {
	switch k {
	case ResultValid:
		return "valid"
	case ResultFollowUp:
		return "follow_up"
	default:
		return "invalid"
	}
}

// ValidationResult is the outcome of interpreting one message for one slot.
type ValidationResult struct {
	Kind       ResultKind
	Value      string
	Prompt     string
	Candidates []string
}

func Valid(value string) ValidationResult {
	return ValidationResult{Kind: ResultValid, Value: value}
}

func Invalid() ValidationResult {
	return ValidationResult{Kind: ResultInvalid}
}

func NeedsFollowUp(prompt string, candidates []string) ValidationResult {
	return ValidationResult{Kind: ResultFollowUp, Prompt: prompt, Candidates: candidates}
}
