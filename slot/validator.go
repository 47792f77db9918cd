// Package slot interprets user messages for individual slots through the NLU collaborator.
package slot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/tbxark/rneagent/metrics"
	"github.com/tbxark/rneagent/nlu"
	"github.com/tbxark/rneagent/reference"
	"github.com/tbxark/rneagent/types"
)

// ClarificationPrompt is asked when several entity types match the user's message.
const ClarificationPrompt = "J’ai identifié plusieurs types d’entités possibles : %s.\nLequel correspond le mieux à ton cas ?"

var datePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)

type Validator struct {
	interpreter nlu.Interpreter
	catalog     *reference.Catalog
}

func NewValidator(interpreter nlu.Interpreter, catalog *reference.Catalog) *Validator {
	return &Validator{interpreter: interpreter, catalog: catalog}
}

// Validate interprets raw as the answer to the awaited slot.
func (v *Validator) Validate(ctx context.Context, spec types.SlotSpec, session *types.Session, raw string) types.ValidationResult {
	result := v.validate(ctx, spec, session, raw)
	metrics.RecordValidation(string(spec.Key), result.Kind.String())
	slog.Debug("Validated slot", "slot", spec.Key, "result", result.Kind, "value", result.Value)
	return result
}

func (v *Validator) validate(ctx context.Context, spec types.SlotSpec, session *types.Session, raw string) types.ValidationResult {
	switch spec.Validation {
	case types.KindIntent:
		if value, ok := v.intent(ctx, spec, raw); ok {
			return types.Valid(value)
		}
	case types.KindEntityType:
		if len(session.Candidates) > 0 {
			return v.disambiguate(ctx, spec, session.Candidates, raw)
		}
		return v.matchEntityType(ctx, spec, session.Slots, raw)
	case types.KindBinaryChoice:
		if value, ok := v.choice(ctx, spec, raw); ok {
			return types.Valid(value)
		}
	case types.KindDate:
		if value, ok := v.date(ctx, spec, raw); ok {
			return types.Valid(value)
		}
	case types.KindCatalog:
		if value, ok := v.updateAction(ctx, spec, raw); ok {
			return types.Valid(value)
		}
	default:
		slog.Error("Unknown validation kind", "slot", spec.Key, "validation", spec.Validation)
	}
	return types.Invalid()
}

// Extract tries to read the slot out of a free-form message. It never starts a disambiguation round.
func (v *Validator) Extract(ctx context.Context, spec types.SlotSpec, session *types.Session, raw string) (string, bool) {
	switch spec.Validation {
	case types.KindIntent:
		return v.intent(ctx, spec, raw)
	case types.KindEntityType:
		return v.extractEntityType(ctx, spec, session.Slots, raw)
	case types.KindBinaryChoice:
		return v.choice(ctx, spec, raw)
	case types.KindDate:
		match := datePattern.FindString(raw)
		if match == "" {
			return "", false
		}
		return v.date(ctx, spec, match)
	case types.KindCatalog:
		return v.updateAction(ctx, spec, raw)
	}
	return "", false
}

func degraded(spec types.SlotSpec, err error) {
	if errors.Is(err, nlu.ErrNoMatch) {
		slog.Debug("No interpretation for slot", "slot", spec.Key, "error", err)
		return
	}
	slog.Warn("Collaborator call degraded to invalid", "slot", spec.Key, "error", err)
}

func (v *Validator) intent(ctx context.Context, spec types.SlotSpec, raw string) (string, bool) {
	reply, err := v.interpreter.ClassifyIntent(ctx, raw)
	if err != nil {
		degraded(spec, err)
		return "", false
	}
	return reference.Match(reply.Intent, []string{types.IntentCreation, types.IntentUpdate})
}

func (v *Validator) entityOptions(slots types.Slots) []string {
	intent, _ := slots.Get(types.SlotIntent)
	return v.catalog.EntityTypesFor(intent)
}

func (v *Validator) matchEntityType(ctx context.Context, spec types.SlotSpec, slots types.Slots, raw string) types.ValidationResult {
	reply, err := v.interpreter.MatchEntityType(ctx, raw, v.entityOptions(slots))
	if err != nil {
		degraded(spec, err)
		return types.Invalid()
	}
	candidates := nonEmpty(reply.Candidates)
	switch len(candidates) {
	case 0:
		return types.Invalid()
	case 1:
		return types.Valid(v.catalogSpelling(candidates[0]))
	default:
		return types.NeedsFollowUp(fmt.Sprintf(ClarificationPrompt, strings.Join(candidates, ", ")), candidates)
	}
}

// nonEmpty trims candidates and drops blank ones. Spelling, case and repeats are kept as
// returned by the collaborator.
func nonEmpty(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// catalogSpelling returns the catalog spelling of name, or name itself when the catalog does
// not know it.
func (v *Validator) catalogSpelling(name string) string {
	if canonical, ok := v.catalog.FindEntityType(name); ok {
		return canonical
	}
	return name
}

func (v *Validator) disambiguate(ctx context.Context, spec types.SlotSpec, candidates []string, raw string) types.ValidationResult {
	if c, ok := reference.Match(raw, candidates); ok {
		return types.Valid(c)
	}
	reply, err := v.interpreter.PickEntityType(ctx, raw, candidates)
	if err != nil {
		degraded(spec, err)
		return types.Invalid()
	}
	if c, ok := reference.Match(reply.Chosen, candidates); ok {
		return types.Valid(c)
	}
	return types.Invalid()
}

func (v *Validator) extractEntityType(ctx context.Context, spec types.SlotSpec, slots types.Slots, raw string) (string, bool) {
	reply, err := v.interpreter.MatchEntityType(ctx, raw, v.entityOptions(slots))
	if err != nil {
		degraded(spec, err)
		return "", false
	}
	candidates := nonEmpty(reply.Candidates)
	if len(candidates) != 1 {
		return "", false
	}
	return v.catalog.FindEntityType(candidates[0])
}

func (v *Validator) choice(ctx context.Context, spec types.SlotSpec, raw string) (string, bool) {
	reply, err := v.interpreter.ChooseDocumentsOrPenalty(ctx, raw)
	if err != nil {
		degraded(spec, err)
		return "", false
	}
	return reference.Match(reply.Choice, []string{types.ChoiceDocuments, types.ChoicePenalty})
}

func (v *Validator) date(ctx context.Context, spec types.SlotSpec, raw string) (string, bool) {
	reply, err := v.interpreter.NormalizeDate(ctx, raw)
	if err != nil {
		degraded(spec, err)
		return "", false
	}
	if reply.Invalid() {
		return "", false
	}
	if _, err := time.Parse(types.DateLayout, reply.Date); err != nil {
		slog.Warn("Collaborator returned an unparsable date", "slot", spec.Key, "date", reply.Date)
		return "", false
	}
	return reply.Date, true
}

func (v *Validator) updateAction(ctx context.Context, spec types.SlotSpec, raw string) (string, bool) {
	reply, err := v.interpreter.ChooseUpdateAction(ctx, raw, v.catalog.UpdateActions)
	if err != nil {
		degraded(spec, err)
		return "", false
	}
	return v.catalog.FindUpdateAction(reply.Action)
}
