package nlu

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Task identifies one collaborator prompt.
type Task string

const (
	TaskClassifyIntent         Task = "classify_intent"
	TaskMatchEntityType        Task = "match_type_ent"
	TaskPickEntityType         Task = "pick_type_ent"
	TaskDocumentsOrPenalty     Task = "one_of_documents_or_penalty"
	TaskValidDate              Task = "valid_date_string"
	TaskChooseUpdateAction     Task = "choose_update_action"
	TaskExtractProcedureFields Task = "extract_procedure_fields"
)

// Tasks lists every task identifier in a stable order.
var Tasks = []Task{
	TaskClassifyIntent,
	TaskMatchEntityType,
	TaskPickEntityType,
	TaskDocumentsOrPenalty,
	TaskValidDate,
	TaskChooseUpdateAction,
	TaskExtractProcedureFields,
}

func (t Task) Valid() bool {
	for _, task := range Tasks {
		if t == task {
			return true
		}
	}
	return false
}

var (
	// ErrCollaborator wraps transport failures and timeouts of the collaborator.
	ErrCollaborator = errors.New("nlu collaborator failure")
	// ErrMalformedReply is returned when a reply does not have the shape its task requires.
	ErrMalformedReply = errors.New("malformed nlu reply")
	// ErrNoMatch is returned by interpreters that cannot decide; a failback chain moves on.
	ErrNoMatch = errors.New("no match")
)

// InvalidDate is the structured report of the date task for an impossible date.
const InvalidDate = "invalid_date"

type IntentReply struct {
	Intent string `json:"intent_type" jsonschema:"required,enum=création,enum=mise à jour,enum=unknown,description=The procedure the user wants"`
}

func (r *IntentReply) Validate() error {
	if r == nil || strings.TrimSpace(r.Intent) == "" {
		return fmt.Errorf("%w: %s: empty intent_type", ErrMalformedReply, TaskClassifyIntent)
	}
	r.Intent = strings.TrimSpace(r.Intent)
	return nil
}

type EntityReply struct {
	Candidates []string `json:"candidates" jsonschema:"required,description=Entity types the user may mean; empty when none fits"`
}

func (r *EntityReply) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: %s: empty reply", ErrMalformedReply, TaskMatchEntityType)
	}
	out := r.Candidates[:0]
	for _, c := range r.Candidates {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	r.Candidates = out
	return nil
}

type PickReply struct {
	Chosen string `json:"chosen" jsonschema:"required,description=The exact value of the single chosen candidate"`
}

func (r *PickReply) Validate() error {
	if r == nil || strings.TrimSpace(r.Chosen) == "" {
		return fmt.Errorf("%w: %s: empty chosen", ErrMalformedReply, TaskPickEntityType)
	}
	r.Chosen = strings.TrimSpace(r.Chosen)
	return nil
}

type ChoiceReply struct {
	Choice string `json:"choice" jsonschema:"required,enum=documents,enum=amende,enum=unknown,description=What the user asks for"`
}

func (r *ChoiceReply) Validate() error {
	if r == nil || strings.TrimSpace(r.Choice) == "" {
		return fmt.Errorf("%w: %s: empty choice", ErrMalformedReply, TaskDocumentsOrPenalty)
	}
	r.Choice = strings.TrimSpace(r.Choice)
	return nil
}

type DateReply struct {
	Date  string `json:"date,omitempty" jsonschema:"description=The date as DD/MM/YYYY"`
	Error string `json:"error,omitempty" jsonschema:"enum=invalid_date,description=Set to invalid_date when the text holds no valid date"`
}

func (r *DateReply) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: %s: empty reply", ErrMalformedReply, TaskValidDate)
	}
	r.Date, r.Error = strings.TrimSpace(r.Date), strings.TrimSpace(r.Error)
	if r.Error == InvalidDate {
		return nil
	}
	if r.Date == "" {
		return fmt.Errorf("%w: %s: neither date nor error", ErrMalformedReply, TaskValidDate)
	}
	return nil
}

// Invalid reports the structured invalid-date answer.
func (r *DateReply) Invalid() bool {
	return r.Error == InvalidDate
}

type UpdateActionReply struct {
	Action string `json:"update_action" jsonschema:"required,description=The exact catalog value of the update action"`
}

func (r *UpdateActionReply) Validate() error {
	if r == nil || strings.TrimSpace(r.Action) == "" {
		return fmt.Errorf("%w: %s: empty update_action", ErrMalformedReply, TaskChooseUpdateAction)
	}
	r.Action = strings.TrimSpace(r.Action)
	return nil
}

// ProcedureFields is what the batch extractor reads out of a procedure document.
type ProcedureFields struct {
	Documents    []string `json:"documents_demandes" jsonschema:"required,description=Documents requested by the procedure"`
	Deadlines    []string `json:"delais" jsonschema:"required,description=Deadlines of the procedure"`
	Fees         []string `json:"redevances_a_acquitter" jsonschema:"required,description=Fees to pay"`
	Observations []string `json:"observations" jsonschema:"required,description=Remarks and penalty details"`
}

func (r *ProcedureFields) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: %s: empty reply", ErrMalformedReply, TaskExtractProcedureFields)
	}
	if len(r.Documents)+len(r.Deadlines)+len(r.Fees)+len(r.Observations) == 0 {
		return fmt.Errorf("%w: %s: no field extracted", ErrMalformedReply, TaskExtractProcedureFields)
	}
	return nil
}

// Interpreter is the NLU collaborator. Each method is one task with its own reply shape.
type Interpreter interface {
	ClassifyIntent(ctx context.Context, input string) (*IntentReply, error)
	MatchEntityType(ctx context.Context, input string, options []string) (*EntityReply, error)
	PickEntityType(ctx context.Context, input string, candidates []string) (*PickReply, error)
	ChooseDocumentsOrPenalty(ctx context.Context, input string) (*ChoiceReply, error)
	NormalizeDate(ctx context.Context, input string) (*DateReply, error)
	ChooseUpdateAction(ctx context.Context, input string, actions []string) (*UpdateActionReply, error)
}

// FieldExtractor reads procedure fields out of a source document.
type FieldExtractor interface {
	ExtractProcedureFields(ctx context.Context, text string) (*ProcedureFields, error)
}
