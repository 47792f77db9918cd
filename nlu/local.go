package nlu

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tbxark/rneagent/types"
)

// LocalInterpreter answers the tasks it can decide from keywords alone and returns ErrNoMatch otherwise.
type LocalInterpreter struct {
	CreationKeywords []string
	UpdateKeywords   []string
	DocumentKeywords []string
	PenaltyKeywords  []string
	// EntityAliases maps a lower-case word to the catalog entity type it stands for.
	EntityAliases map[string]string
}

func NewLocalInterpreter() *LocalInterpreter {
	return &LocalInterpreter{
		CreationKeywords: []string{"créer", "creer", "création", "creation", "immatriculer", "immatriculation", "constituer", "fonder", "nouvelle"},
		UpdateKeywords:   []string{"mise à jour", "mise a jour", "mettre à jour", "mettre a jour", "modifier", "modification", "changer", "changement", "transférer", "transfert"},
		DocumentKeywords: []string{"document", "pièce", "piece", "dossier", "papiers"},
		PenaltyKeywords:  []string{"amende", "pénalité", "penalite", "pénalités", "retard", "sanction"},
		EntityAliases: map[string]string{
			"sa":    "Société anonyme",
			"sarl":  "Sarl/Suarl/La société en nom collectif/La société en commandite par actions/La société en commandite simple/Société civile",
			"suarl": "Sarl/Suarl/La société en nom collectif/La société en commandite par actions/La société en commandite simple/Société civile",
			"gie":   "Groupement d'intérêt économique",
		},
	}
}

var wordSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func (l *LocalInterpreter) ClassifyIntent(ctx context.Context, input string) (*IntentReply, error) {
	text := normalizeText(input)
	// Update keywords are checked first: "modifier la création" is an update.
	switch {
	case containsAny(text, l.UpdateKeywords):
		return &IntentReply{Intent: types.IntentUpdate}, nil
	case containsAny(text, l.CreationKeywords):
		return &IntentReply{Intent: types.IntentCreation}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatch, TaskClassifyIntent)
}

func (l *LocalInterpreter) MatchEntityType(ctx context.Context, input string, options []string) (*EntityReply, error) {
	text := normalizeText(input)
	var found []string
	seen := map[string]bool{}
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			found = append(found, v)
		}
	}
	for _, opt := range options {
		if o := normalizeText(opt); o != "" && strings.Contains(text, o) {
			add(opt)
		}
	}
	for _, word := range wordSplit.Split(text, -1) {
		target, ok := l.EntityAliases[word]
		if !ok {
			continue
		}
		for _, opt := range options {
			if strings.EqualFold(opt, target) {
				add(opt)
			}
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, TaskMatchEntityType)
	}
	return &EntityReply{Candidates: found}, nil
}

func (l *LocalInterpreter) PickEntityType(ctx context.Context, input string, candidates []string) (*PickReply, error) {
	text := normalizeText(input)
	var hit string
	for _, c := range candidates {
		n := normalizeText(c)
		if n == "" || !(strings.Contains(n, text) || strings.Contains(text, n)) {
			continue
		}
		if hit != "" {
			return nil, fmt.Errorf("%w: %s: ambiguous", ErrNoMatch, TaskPickEntityType)
		}
		hit = c
	}
	if hit == "" || text == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, TaskPickEntityType)
	}
	return &PickReply{Chosen: hit}, nil
}

func (l *LocalInterpreter) ChooseDocumentsOrPenalty(ctx context.Context, input string) (*ChoiceReply, error) {
	text := normalizeText(input)
	docs, penalty := containsAny(text, l.DocumentKeywords), containsAny(text, l.PenaltyKeywords)
	switch {
	case docs && !penalty:
		return &ChoiceReply{Choice: types.ChoiceDocuments}, nil
	case penalty && !docs:
		return &ChoiceReply{Choice: types.ChoicePenalty}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatch, TaskDocumentsOrPenalty)
}

var looseDate = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})\b`)

func (l *LocalInterpreter) NormalizeDate(ctx context.Context, input string) (*DateReply, error) {
	m := looseDate.FindStringSubmatch(input)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, TaskValidDate)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || int(date.Month()) != month || date.Year() != year {
		return &DateReply{Error: InvalidDate}, nil
	}
	return &DateReply{Date: date.Format(types.DateLayout)}, nil
}

func (l *LocalInterpreter) ChooseUpdateAction(ctx context.Context, input string, actions []string) (*UpdateActionReply, error) {
	text := normalizeText(input)
	best := ""
	for _, a := range actions {
		n := normalizeText(a)
		if n != "" && strings.Contains(text, n) && len(a) > len(best) {
			best = a
		}
	}
	if best == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, TaskChooseUpdateAction)
	}
	return &UpdateActionReply{Action: best}, nil
}

// FailbackInterpreter asks each interpreter in turn and returns the first answer.
type FailbackInterpreter struct {
	interpreters []Interpreter
}

func NewFailbackInterpreter(interpreters ...Interpreter) *FailbackInterpreter {
	return &FailbackInterpreter{interpreters: interpreters}
}

func failback[R any](f *FailbackInterpreter, call func(Interpreter) (R, error)) (R, error) {
	var zero R
	lastErr := fmt.Errorf("%w: no interpreter configured", ErrNoMatch)
	for _, in := range f.interpreters {
		out, err := call(in)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

func (f *FailbackInterpreter) ClassifyIntent(ctx context.Context, input string) (*IntentReply, error) {
	return failback(f, func(in Interpreter) (*IntentReply, error) { return in.ClassifyIntent(ctx, input) })
}

func (f *FailbackInterpreter) MatchEntityType(ctx context.Context, input string, options []string) (*EntityReply, error) {
	return failback(f, func(in Interpreter) (*EntityReply, error) { return in.MatchEntityType(ctx, input, options) })
}

func (f *FailbackInterpreter) PickEntityType(ctx context.Context, input string, candidates []string) (*PickReply, error) {
	return failback(f, func(in Interpreter) (*PickReply, error) { return in.PickEntityType(ctx, input, candidates) })
}

func (f *FailbackInterpreter) ChooseDocumentsOrPenalty(ctx context.Context, input string) (*ChoiceReply, error) {
	return failback(f, func(in Interpreter) (*ChoiceReply, error) { return in.ChooseDocumentsOrPenalty(ctx, input) })
}

func (f *FailbackInterpreter) NormalizeDate(ctx context.Context, input string) (*DateReply, error) {
	return failback(f, func(in Interpreter) (*DateReply, error) { return in.NormalizeDate(ctx, input) })
}

func (f *FailbackInterpreter) ChooseUpdateAction(ctx context.Context, input string, actions []string) (*UpdateActionReply, error) {
	return failback(f, func(in Interpreter) (*UpdateActionReply, error) { return in.ChooseUpdateAction(ctx, input, actions) })
}

var (
	_ Interpreter = (*LocalInterpreter)(nil)
	_ Interpreter = (*FailbackInterpreter)(nil)
)
