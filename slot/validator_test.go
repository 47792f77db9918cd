package slot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/rneagent/nlu"
	"github.com/tbxark/rneagent/reference"
	"github.com/tbxark/rneagent/types"
)

// fakeInterpreter replies from fixed maps keyed by the raw input.
type fakeInterpreter struct {
	intents    map[string]string
	entities   map[string][]string
	picks      map[string]string
	choices    map[string]string
	dates      map[string]nlu.DateReply
	actions    map[string]string
	err        error
	dateInputs []string
	picked     int
}

func (f *fakeInterpreter) ClassifyIntent(ctx context.Context, input string) (*nlu.IntentReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &nlu.IntentReply{Intent: f.intents[input]}, nil
}

func (f *fakeInterpreter) MatchEntityType(ctx context.Context, input string, options []string) (*nlu.EntityReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &nlu.EntityReply{Candidates: f.entities[input]}, nil
}

func (f *fakeInterpreter) PickEntityType(ctx context.Context, input string, candidates []string) (*nlu.PickReply, error) {
	f.picked++
	if f.err != nil {
		return nil, f.err
	}
	return &nlu.PickReply{Chosen: f.picks[input]}, nil
}

func (f *fakeInterpreter) ChooseDocumentsOrPenalty(ctx context.Context, input string) (*nlu.ChoiceReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &nlu.ChoiceReply{Choice: f.choices[input]}, nil
}

func (f *fakeInterpreter) NormalizeDate(ctx context.Context, input string) (*nlu.DateReply, error) {
	f.dateInputs = append(f.dateInputs, input)
	if f.err != nil {
		return nil, f.err
	}
	r := f.dates[input]
	return &r, nil
}

func (f *fakeInterpreter) ChooseUpdateAction(ctx context.Context, input string, actions []string) (*nlu.UpdateActionReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &nlu.UpdateActionReply{Action: f.actions[input]}, nil
}

func newTestValidator(t *testing.T, f *fakeInterpreter) *Validator {
	t.Helper()
	catalog, err := reference.DefaultCatalog()
	require.NoError(t, err)
	return NewValidator(f, catalog)
}

func spec(key types.SlotKey, kind types.ValidationKind) types.SlotSpec {
	return types.SlotSpec{Key: key, Validation: kind}
}

func session(slots types.Slots, candidates ...string) *types.Session {
	return &types.Session{Slots: slots, Candidates: candidates}
}

func TestValidateIntent(t *testing.T) {
	f := &fakeInterpreter{intents: map[string]string{
		"créer":    "création",
		"modifier": "Mise à jour",
		"bonjour":  "unknown",
	}}
	v := newTestValidator(t, f)
	s := spec(types.SlotIntent, types.KindIntent)

	assert.Equal(t, types.Valid("création"), v.Validate(context.Background(), s, session(types.Slots{}), "créer"))
	assert.Equal(t, types.Valid("mise à jour"), v.Validate(context.Background(), s, session(types.Slots{}), "modifier"))
	assert.Equal(t, types.Invalid(), v.Validate(context.Background(), s, session(types.Slots{}), "bonjour"))
}

func TestValidateEntityTypeFirstPass(t *testing.T) {
	f := &fakeInterpreter{entities: map[string][]string{
		"une sa":       {"société anonyme"},
		"association":  {"Association", "Réseau d'associations"},
		"une boutique": nil,
	}}
	v := newTestValidator(t, f)
	s := spec(types.SlotEntityType, types.KindEntityType)
	sess := session(types.Slots{types.SlotIntent: types.IntentCreation})

	assert.Equal(t, types.Valid("Société anonyme"), v.Validate(context.Background(), s, sess, "une sa"))
	assert.Equal(t, types.Invalid(), v.Validate(context.Background(), s, sess, "une boutique"))

	got := v.Validate(context.Background(), s, sess, "association")
	assert.Equal(t, types.ResultFollowUp, got.Kind)
	assert.Equal(t, []string{"Association", "Réseau d'associations"}, got.Candidates)
	assert.Equal(t, fmt.Sprintf(ClarificationPrompt, "Association, Réseau d'associations"), got.Prompt)
}

func TestValidateEntityTypeKeepsCandidatesVerbatim(t *testing.T) {
	f := &fakeInterpreter{entities: map[string][]string{
		"une anonyme":   {"SOCIÉTÉ ANONYME", "société anonyme"},
		"public ou pas": {"sociétés", " ", "etablissement public"},
		"deux fois":     {"Association", "Association"},
	}}
	v := newTestValidator(t, f)
	s := spec(types.SlotEntityType, types.KindEntityType)
	sess := session(types.Slots{types.SlotIntent: types.IntentUpdate})

	tests := []struct {
		input      string
		candidates []string
	}{
		{"une anonyme", []string{"SOCIÉTÉ ANONYME", "société anonyme"}},
		{"public ou pas", []string{"sociétés", "etablissement public"}},
		{"deux fois", []string{"Association", "Association"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := v.Validate(context.Background(), s, sess, tt.input)
			require.Equal(t, types.ResultFollowUp, got.Kind)
			assert.Equal(t, tt.candidates, got.Candidates)
			assert.Equal(t, fmt.Sprintf(ClarificationPrompt, strings.Join(tt.candidates, ", ")), got.Prompt)
		})
	}
}

func TestValidateEntityTypeDisambiguation(t *testing.T) {
	f := &fakeInterpreter{picks: map[string]string{
		"le réseau": "Réseau d'associations",
		"autre":     "Parti politique",
	}}
	v := newTestValidator(t, f)
	s := spec(types.SlotEntityType, types.KindEntityType)
	sess := session(types.Slots{}, "Association", "Réseau d'associations")

	assert.Equal(t, types.Valid("Association"), v.Validate(context.Background(), s, sess, " ASSOCIATION "))
	assert.Equal(t, 0, f.picked)

	assert.Equal(t, types.Valid("Réseau d'associations"), v.Validate(context.Background(), s, sess, "le réseau"))
	assert.Equal(t, types.Invalid(), v.Validate(context.Background(), s, sess, "autre"))
	assert.Equal(t, 2, f.picked)
}

func TestValidateBinaryChoiceAndCatalog(t *testing.T) {
	f := &fakeInterpreter{
		choices: map[string]string{"docs": "documents", "?": "unknown"},
		actions: map[string]string{"siège": "transfert du siège", "façade": "Repeindre la façade"},
	}
	v := newTestValidator(t, f)
	choice := spec(types.SlotChoice, types.KindBinaryChoice)
	action := spec(types.SlotUpdateAction, types.KindCatalog)

	assert.Equal(t, types.Valid("documents"), v.Validate(context.Background(), choice, session(types.Slots{}), "docs"))
	assert.Equal(t, types.Invalid(), v.Validate(context.Background(), choice, session(types.Slots{}), "?"))
	assert.Equal(t, types.Valid("Transfert du siège"), v.Validate(context.Background(), action, session(types.Slots{}), "siège"))
	assert.Equal(t, types.Invalid(), v.Validate(context.Background(), action, session(types.Slots{}), "façade"))
}

func TestValidateDate(t *testing.T) {
	f := &fakeInterpreter{dates: map[string]nlu.DateReply{
		"le 1er mars 2025": {Date: "01/03/2025"},
		"31/02/2024":       {Error: nlu.InvalidDate},
		"demain":           {Date: "2025-03-02"},
	}}
	v := newTestValidator(t, f)
	s := spec(types.SlotCreationDate, types.KindDate)

	assert.Equal(t, types.Valid("01/03/2025"), v.Validate(context.Background(), s, session(types.Slots{}), "le 1er mars 2025"))
	assert.Equal(t, types.Invalid(), v.Validate(context.Background(), s, session(types.Slots{}), "31/02/2024"))
	assert.Equal(t, types.Invalid(), v.Validate(context.Background(), s, session(types.Slots{}), "demain"))
}

func TestCollaboratorFailureDegradesToInvalid(t *testing.T) {
	f := &fakeInterpreter{err: fmt.Errorf("%w: deadline exceeded", nlu.ErrCollaborator)}
	v := newTestValidator(t, f)

	for _, s := range []types.SlotSpec{
		spec(types.SlotIntent, types.KindIntent),
		spec(types.SlotEntityType, types.KindEntityType),
		spec(types.SlotChoice, types.KindBinaryChoice),
		spec(types.SlotCreationDate, types.KindDate),
		spec(types.SlotUpdateAction, types.KindCatalog),
	} {
		t.Run(string(s.Key), func(t *testing.T) {
			assert.Equal(t, types.Invalid(), v.Validate(context.Background(), s, session(types.Slots{}), "x"))
		})
	}
	assert.Equal(t, types.Invalid(), v.Validate(context.Background(), spec("other", "free_text"), session(types.Slots{}), "x"))
}

func TestExtractEntityTypeNeverDisambiguates(t *testing.T) {
	f := &fakeInterpreter{entities: map[string][]string{
		"sa":          {"Société anonyme"},
		"association": {"Association", "Réseau d'associations"},
		"boutique":    {"Boutique"},
	}}
	v := newTestValidator(t, f)
	s := spec(types.SlotEntityType, types.KindEntityType)
	sess := session(types.Slots{types.SlotIntent: types.IntentCreation})

	got, ok := v.Extract(context.Background(), s, sess, "sa")
	require.True(t, ok)
	assert.Equal(t, "Société anonyme", got)

	_, ok = v.Extract(context.Background(), s, sess, "association")
	assert.False(t, ok)
	_, ok = v.Extract(context.Background(), s, sess, "boutique")
	assert.False(t, ok)
}

func TestExtractDateOnlySendsMatchedPattern(t *testing.T) {
	f := &fakeInterpreter{dates: map[string]nlu.DateReply{"5/3/2025": {Date: "05/03/2025"}}}
	v := newTestValidator(t, f)
	s := spec(types.SlotCreationDate, types.KindDate)

	_, ok := v.Extract(context.Background(), s, session(types.Slots{}), "créée au mois de mars")
	assert.False(t, ok)
	assert.Empty(t, f.dateInputs)

	got, ok := v.Extract(context.Background(), s, session(types.Slots{}), "Elle a été créée le 5/3/2025 à Tunis")
	require.True(t, ok)
	assert.Equal(t, "05/03/2025", got)
	assert.Equal(t, []string{"5/3/2025"}, f.dateInputs)
}

func TestExtractIgnoresNoMatch(t *testing.T) {
	f := &fakeInterpreter{err: fmt.Errorf("%w: local", nlu.ErrNoMatch)}
	v := newTestValidator(t, f)

	_, ok := v.Extract(context.Background(), spec(types.SlotChoice, types.KindBinaryChoice), session(types.Slots{}), "x")
	assert.False(t, ok)
}
