package nlu

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tbxark/rneagent/metrics"
	"github.com/tbxark/rneagent/retry"
)

// GuardedInterpreter bounds every call of the wrapped interpreter with the retry policy and
// records it in the collaborator metrics.
type GuardedInterpreter struct {
	inner  Interpreter
	policy retry.Policy
}

func NewGuardedInterpreter(inner Interpreter, policy retry.Policy) *GuardedInterpreter {
	return &GuardedInterpreter{inner: inner, policy: policy}
}

func guarded[R any](ctx context.Context, policy retry.Policy, task Task, call func(ctx context.Context) (R, error)) (R, error) {
	var out R
	start := time.Now()
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		r, err := call(ctx)
		if err != nil {
			if errors.Is(err, ErrNoMatch) {
				return retry.Permanent(err)
			}
			return err
		}
		out = r
		return nil
	})
	metrics.RecordCollaboratorCall(string(task), callStatus(err), time.Since(start))
	if err != nil {
		slog.Debug("Collaborator call failed", "task", task, "error", err)
		var zero R
		return zero, err
	}
	return out, nil
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	case errors.Is(err, ErrMalformedReply):
		return "malformed"
	default:
		return "error"
	}
}

func (g *GuardedInterpreter) ClassifyIntent(ctx context.Context, input string) (*IntentReply, error) {
	return guarded(ctx, g.policy, TaskClassifyIntent, func(ctx context.Context) (*IntentReply, error) {
		return g.inner.ClassifyIntent(ctx, input)
	})
}

func (g *GuardedInterpreter) MatchEntityType(ctx context.Context, input string, options []string) (*EntityReply, error) {
	return guarded(ctx, g.policy, TaskMatchEntityType, func(ctx context.Context) (*EntityReply, error) {
		return g.inner.MatchEntityType(ctx, input, options)
	})
}

func (g *GuardedInterpreter) PickEntityType(ctx context.Context, input string, candidates []string) (*PickReply, error) {
	return guarded(ctx, g.policy, TaskPickEntityType, func(ctx context.Context) (*PickReply, error) {
		return g.inner.PickEntityType(ctx, input, candidates)
	})
}

func (g *GuardedInterpreter) ChooseDocumentsOrPenalty(ctx context.Context, input string) (*ChoiceReply, error) {
	return guarded(ctx, g.policy, TaskDocumentsOrPenalty, func(ctx context.Context) (*ChoiceReply, error) {
		return g.inner.ChooseDocumentsOrPenalty(ctx, input)
	})
}

func (g *GuardedInterpreter) NormalizeDate(ctx context.Context, input string) (*DateReply, error) {
	return guarded(ctx, g.policy, TaskValidDate, func(ctx context.Context) (*DateReply, error) {
		return g.inner.NormalizeDate(ctx, input)
	})
}

func (g *GuardedInterpreter) ChooseUpdateAction(ctx context.Context, input string, actions []string) (*UpdateActionReply, error) {
	return guarded(ctx, g.policy, TaskChooseUpdateAction, func(ctx context.Context) (*UpdateActionReply, error) {
		return g.inner.ChooseUpdateAction(ctx, input, actions)
	})
}

// GuardedExtractor is the batch counterpart of GuardedInterpreter.
type GuardedExtractor struct {
	inner  FieldExtractor
	policy retry.Policy
}

func NewGuardedExtractor(inner FieldExtractor, policy retry.Policy) *GuardedExtractor {
	return &GuardedExtractor{inner: inner, policy: policy}
}

func (g *GuardedExtractor) ExtractProcedureFields(ctx context.Context, text string) (*ProcedureFields, error) {
	return guarded(ctx, g.policy, TaskExtractProcedureFields, func(ctx context.Context) (*ProcedureFields, error) {
		return g.inner.ExtractProcedureFields(ctx, text)
	})
}

var (
	_ Interpreter    = (*GuardedInterpreter)(nil)
	_ FieldExtractor = (*GuardedExtractor)(nil)
)
