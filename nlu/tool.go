package nlu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/rneagent/structured"
	"github.com/tbxark/rneagent/types"
)

var toolDescriptions = map[Task]string{
	TaskClassifyIntent:         "Classify the registry procedure the user asks about: création, mise à jour or unknown.",
	TaskMatchEntityType:        "Return the catalog entity types that match the user's message.",
	TaskPickEntityType:         "Pick exactly one entity type among the given candidates.",
	TaskDocumentsOrPenalty:     "Tell whether the user wants the list of documents or the penalty amount.",
	TaskValidDate:              "Normalize the date in the user's message to DD/MM/YYYY or report invalid_date.",
	TaskChooseUpdateAction:     "Pick the update action from the catalog that matches the user's message.",
	TaskExtractProcedureFields: "Extract documents, deadlines, fees and observations from a procedure document.",
}

type toolOptions struct {
	prompts Prompts
	now     func() time.Time
}

type ToolOption func(*toolOptions)

// WithTaskPrompts overrides the system prompts of the given tasks.
func WithTaskPrompts(prompts Prompts) ToolOption {
	return func(o *toolOptions) {
		for k, v := range prompts {
			o.prompts[k] = v
		}
	}
}

// WithClock sets the clock used for the current date section of each request.
func WithClock(now func() time.Time) ToolOption {
	return func(o *toolOptions) {
		o.now = now
	}
}

type request = types.ToolRequest

// ToolBasedInterpreter asks a tool calling chat model for each task, forcing the task's tool.
type ToolBasedInterpreter struct {
	intent *structured.Chain[*request, IntentReply]
	entity *structured.Chain[*request, EntityReply]
	pick   *structured.Chain[*request, PickReply]
	choice *structured.Chain[*request, ChoiceReply]
	date   *structured.Chain[*request, DateReply]
	action *structured.Chain[*request, UpdateActionReply]
	fields *structured.Chain[*request, ProcedureFields]
	now    func() time.Time
}

func NewToolBasedInterpreter(chatModel model.ToolCallingChatModel, opts ...ToolOption) (*ToolBasedInterpreter, error) {
	options := &toolOptions{prompts: Prompts{}, now: time.Now}
	for k, v := range DefaultPrompts {
		options.prompts[k] = v
	}
	for _, o := range opts {
		o(options)
	}
	i := &ToolBasedInterpreter{now: options.now}
	var err error
	if i.intent, err = newTaskChain[IntentReply](chatModel, options.prompts, TaskClassifyIntent); err != nil {
		return nil, err
	}
	if i.entity, err = newTaskChain[EntityReply](chatModel, options.prompts, TaskMatchEntityType); err != nil {
		return nil, err
	}
	if i.pick, err = newTaskChain[PickReply](chatModel, options.prompts, TaskPickEntityType); err != nil {
		return nil, err
	}
	if i.choice, err = newTaskChain[ChoiceReply](chatModel, options.prompts, TaskDocumentsOrPenalty); err != nil {
		return nil, err
	}
	if i.date, err = newTaskChain[DateReply](chatModel, options.prompts, TaskValidDate); err != nil {
		return nil, err
	}
	if i.action, err = newTaskChain[UpdateActionReply](chatModel, options.prompts, TaskChooseUpdateAction); err != nil {
		return nil, err
	}
	if i.fields, err = newTaskChain[ProcedureFields](chatModel, options.prompts, TaskExtractProcedureFields); err != nil {
		return nil, err
	}
	return i, nil
}

func newTaskChain[T any](chatModel model.ToolCallingChatModel, prompts Prompts, task Task) (*structured.Chain[*request, T], error) {
	name := string(task)
	chain, err := structured.NewChain[*request, T](
		chatModel,
		func(ctx context.Context, req *request) ([]*schema.Message, error) {
			return []*schema.Message{
				schema.SystemMessage(prompts.Render(task, name, req.Input)),
				schema.UserMessage(types.FormatToolRequest(req)),
			}, nil
		},
		name,
		toolDescriptions[task],
	)
	if err != nil {
		return nil, fmt.Errorf("create %s chain: %w", task, err)
	}
	return chain, nil
}

type validatable[T any] interface {
	*T
	Validate() error
}

func invoke[T any, PT validatable[T]](ctx context.Context, chain *structured.Chain[*request, T], req *request) (*T, error) {
	out, err := chain.Invoke(ctx, req)
	if err != nil {
		if errors.Is(err, structured.ErrInvalidOutput) {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedReply, req.Task, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCollaborator, req.Task, err)
	}
	if err := PT(out).Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (i *ToolBasedInterpreter) newRequest(task Task, input string, title string, options []string) *request {
	return &request{
		Task:         string(task),
		Input:        input,
		Options:      options,
		OptionsTitle: title,
		Now:          i.now(),
	}
}

func (i *ToolBasedInterpreter) ClassifyIntent(ctx context.Context, input string) (*IntentReply, error) {
	return invoke(ctx, i.intent, i.newRequest(TaskClassifyIntent, input, "", nil))
}

func (i *ToolBasedInterpreter) MatchEntityType(ctx context.Context, input string, options []string) (*EntityReply, error) {
	return invoke(ctx, i.entity, i.newRequest(TaskMatchEntityType, input, "Entity types", options))
}

func (i *ToolBasedInterpreter) PickEntityType(ctx context.Context, input string, candidates []string) (*PickReply, error) {
	return invoke(ctx, i.pick, i.newRequest(TaskPickEntityType, input, "Candidates", candidates))
}

func (i *ToolBasedInterpreter) ChooseDocumentsOrPenalty(ctx context.Context, input string) (*ChoiceReply, error) {
	return invoke(ctx, i.choice, i.newRequest(TaskDocumentsOrPenalty, input, "", nil))
}

func (i *ToolBasedInterpreter) NormalizeDate(ctx context.Context, input string) (*DateReply, error) {
	return invoke(ctx, i.date, i.newRequest(TaskValidDate, input, "", nil))
}

func (i *ToolBasedInterpreter) ChooseUpdateAction(ctx context.Context, input string, actions []string) (*UpdateActionReply, error) {
	return invoke(ctx, i.action, i.newRequest(TaskChooseUpdateAction, input, "Update actions", actions))
}

func (i *ToolBasedInterpreter) ExtractProcedureFields(ctx context.Context, text string) (*ProcedureFields, error) {
	return invoke(ctx, i.fields, i.newRequest(TaskExtractProcedureFields, text, "", nil))
}

var (
	_ Interpreter    = (*ToolBasedInterpreter)(nil)
	_ FieldExtractor = (*ToolBasedInterpreter)(nil)
)
