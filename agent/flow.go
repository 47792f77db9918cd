package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tbxark/rneagent/answer"
	"github.com/tbxark/rneagent/metrics"
	"github.com/tbxark/rneagent/nlu"
	"github.com/tbxark/rneagent/reference"
	"github.com/tbxark/rneagent/retry"
	"github.com/tbxark/rneagent/slot"
	"github.com/tbxark/rneagent/types"
)

// SlotValidator interprets messages for single slots.
type SlotValidator interface {
	Validate(ctx context.Context, spec types.SlotSpec, session *types.Session, raw string) types.ValidationResult
	Extract(ctx context.Context, spec types.SlotSpec, session *types.Session, raw string) (string, bool)
}

type AnswerResolver interface {
	Resolve(slots types.Slots, now time.Time) (answer.Answer, error)
}

type Orchestrator struct {
	flow      *FlowDefinition
	sessions  *SessionStore
	validator SlotValidator
	resolver  AnswerResolver
	now       func() time.Time
}

type OrchestratorOption func(*Orchestrator)

// WithClock sets the clock used for penalty computation.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(
	flow *FlowDefinition,
	sessions *SessionStore,
	validator SlotValidator,
	resolver AnswerResolver,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		flow:      flow,
		sessions:  sessions,
		validator: validator,
		resolver:  resolver,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewRegistryOrchestrator wires the registry dialogue over an interpreter with in-memory sessions.
func NewRegistryOrchestrator(
	flow *FlowDefinition,
	interpreter nlu.Interpreter,
	catalog *reference.Catalog,
	dataset *reference.Dataset,
	policy retry.Policy,
	opts ...OrchestratorOption,
) *Orchestrator {
	validator := slot.NewValidator(nlu.NewGuardedInterpreter(interpreter, policy), catalog)
	return NewOrchestrator(flow, NewMemorySessionStore(flow), validator, answer.NewResolver(dataset), opts...)
}

func (o *Orchestrator) Sessions() *SessionStore {
	return o.sessions
}

// Turn handles one user message and returns the reply to send back.
func (o *Orchestrator) Turn(ctx context.Context, userID, message string) (string, error) {
	userID, message = strings.TrimSpace(userID), strings.TrimSpace(message)
	if userID == "" || message == "" {
		metrics.RecordTurn(string(OutcomeRejected))
		return "", ErrRequestValidation
	}

	unlock := o.sessions.Lock(userID)
	defer unlock()

	reply, outcome, err := o.turn(ctx, userID, message)
	if err != nil {
		metrics.RecordTurn(string(OutcomeError))
		slog.Error("Turn failed", "user_id", userID, "error", err)
		return "", err
	}
	metrics.RecordTurn(string(outcome))
	slog.Debug("Turn done", "user_id", userID, "outcome", outcome)
	return reply, nil
}

func (o *Orchestrator) turn(ctx context.Context, userID, message string) (string, Outcome, error) {
	session, err := o.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return "", "", err
	}
	slog.Debug("Processing turn", "user_id", userID, "session_id", session.ID, "slots", session.Slots, "awaiting", session.Awaiting)

	if reply, outcome, handled, err := o.handleAwaited(ctx, userID, session, message); err != nil || handled {
		return reply, outcome, err
	}

	if err := o.extract(ctx, userID, message); err != nil {
		return "", "", err
	}

	session, err = o.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if next, ok := o.flow.NextMissing(session.Slots); ok {
		if err := o.sessions.SetAwaiting(ctx, userID, next.Key); err != nil {
			return "", "", err
		}
		slog.Debug("Asking slot", "user_id", userID, "slot", next.Key)
		return next.Prompt, OutcomePrompt, nil
	}
	return o.finalize(ctx, userID, session)
}

// handleAwaited validates message against the awaited slot. handled is false when the turn must
// continue with free-form extraction.
func (o *Orchestrator) handleAwaited(ctx context.Context, userID string, session *types.Session, message string) (reply string, outcome Outcome, handled bool, err error) {
	if session.Awaiting == "" {
		return "", "", false, nil
	}
	spec, ok := o.flow.Slot(session.Awaiting)
	if !ok || !spec.ConditionMet(session.Slots) || spec.Filled(session.Slots) {
		slog.Warn("Dropping stale awaited slot", "user_id", userID, "slot", session.Awaiting)
		return "", "", false, o.sessions.SetAwaiting(ctx, userID, "")
	}

	result := o.validator.Validate(ctx, spec, session, message)
	switch result.Kind {
	case types.ResultFollowUp:
		if err := o.sessions.SetFollowUp(ctx, userID, result.Candidates, result.Prompt); err != nil {
			return "", "", true, err
		}
		return result.Prompt, OutcomeFollowUp, true, nil
	case types.ResultValid:
		slog.Debug("Storing slot", "user_id", userID, "slot", spec.Key, "value", result.Value)
		if err := o.sessions.SetSlot(ctx, userID, spec.Key, result.Value); err != nil {
			return "", "", true, err
		}
		if err := o.sessions.ClearFollowUp(ctx, userID); err != nil {
			return "", "", true, err
		}
		return "", "", false, nil
	default:
		return spec.RetryPrompt, OutcomeRetry, true, nil
	}
}

// extract fills every extractable slot it can read from message, in flow order.
func (o *Orchestrator) extract(ctx context.Context, userID, message string) error {
	session, err := o.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	for _, spec := range o.flow.Slots {
		if !o.flow.Extractable(spec, session.Slots) {
			continue
		}
		value, ok := o.validator.Extract(ctx, spec, session, message)
		if !ok {
			continue
		}
		slog.Debug("Extracted slot", "user_id", userID, "slot", spec.Key, "value", value)
		if err := o.sessions.SetSlot(ctx, userID, spec.Key, value); err != nil {
			return err
		}
		session.Slots[spec.Key] = value
	}
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, userID string, session *types.Session) (string, Outcome, error) {
	result, err := o.resolver.Resolve(session.Slots, o.now())
	if errors.Is(err, answer.ErrDateFormat) {
		slog.Warn("Stored creation date is unusable", "user_id", userID, "error", err)
		if err := o.sessions.ClearSlot(ctx, userID, types.SlotCreationDate); err != nil {
			return "", "", err
		}
		if err := o.sessions.SetAwaiting(ctx, userID, types.SlotCreationDate); err != nil {
			return "", "", err
		}
		return result.Text, OutcomeDateError, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve answer: %w", err)
	}
	if err := o.sessions.Reset(ctx, userID); err != nil {
		return "", "", err
	}
	metrics.RecordAnswer(string(result.Kind))
	slog.Debug("Answered", "user_id", userID, "session_id", session.ID, "kind", result.Kind)
	return result.Text, OutcomeAnswer, nil
}
