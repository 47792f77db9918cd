package nlu

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/rneagent/retry"
)

// stubInterpreter answers every task with the configured replies, or err when set.
type stubInterpreter struct {
	intent *IntentReply
	entity *EntityReply
	pick   *PickReply
	choice *ChoiceReply
	date   *DateReply
	action *UpdateActionReply
	err    error
	calls  int
}

func (s *stubInterpreter) result() error {
	s.calls++
	return s.err
}

func (s *stubInterpreter) ClassifyIntent(ctx context.Context, input string) (*IntentReply, error) {
	return s.intent, s.result()
}

func (s *stubInterpreter) MatchEntityType(ctx context.Context, input string, options []string) (*EntityReply, error) {
	return s.entity, s.result()
}

func (s *stubInterpreter) PickEntityType(ctx context.Context, input string, candidates []string) (*PickReply, error) {
	return s.pick, s.result()
}

func (s *stubInterpreter) ChooseDocumentsOrPenalty(ctx context.Context, input string) (*ChoiceReply, error) {
	return s.choice, s.result()
}

func (s *stubInterpreter) NormalizeDate(ctx context.Context, input string) (*DateReply, error) {
	return s.date, s.result()
}

func (s *stubInterpreter) ChooseUpdateAction(ctx context.Context, input string, actions []string) (*UpdateActionReply, error) {
	return s.action, s.result()
}

var fastPolicy = retry.Policy{MaxAttempts: 3, Delay: time.Millisecond, Timeout: time.Second}

func TestGuardedInterpreterRetriesTransientFailures(t *testing.T) {
	stub := &stubInterpreter{choice: &ChoiceReply{Choice: "amende"}}
	flaky := &flakyInterpreter{stubInterpreter: stub, failures: 2}
	g := NewGuardedInterpreter(flaky, fastPolicy)

	out, err := g.ChooseDocumentsOrPenalty(context.Background(), "amende")
	require.NoError(t, err)
	assert.Equal(t, "amende", out.Choice)
	assert.Equal(t, 3, flaky.calls)
}

func TestGuardedInterpreterGivesUp(t *testing.T) {
	flaky := &flakyInterpreter{stubInterpreter: &stubInterpreter{}, failures: 10}
	g := NewGuardedInterpreter(flaky, fastPolicy)

	_, err := g.ClassifyIntent(context.Background(), "x")
	assert.ErrorIs(t, err, ErrCollaborator)
	assert.Equal(t, 3, flaky.calls)
}

func TestGuardedInterpreterDoesNotRetryNoMatch(t *testing.T) {
	stub := &stubInterpreter{err: fmt.Errorf("%w: local", ErrNoMatch)}
	g := NewGuardedInterpreter(stub, fastPolicy)

	_, err := g.NormalizeDate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, 1, stub.calls)
}

func TestGuardedInterpreterInteractiveCallsOnce(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"malformed", fmt.Errorf("%w: bad json", ErrMalformedReply)},
		{"transport", fmt.Errorf("%w: connection reset", ErrCollaborator)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubInterpreter{err: tt.err}
			g := NewGuardedInterpreter(stub, retry.Interactive)

			start := time.Now()
			_, err := g.MatchEntityType(context.Background(), "une sa", nil)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, stub.calls)
			assert.Less(t, time.Since(start), 100*time.Millisecond)
		})
	}
}

func TestCallStatus(t *testing.T) {
	assert.Equal(t, "success", callStatus(nil))
	assert.Equal(t, "no_match", callStatus(fmt.Errorf("x: %w", ErrNoMatch)))
	assert.Equal(t, "malformed", callStatus(fmt.Errorf("x: %w", ErrMalformedReply)))
	assert.Equal(t, "error", callStatus(errors.New("boom")))
}

// flakyInterpreter fails the first n calls with a collaborator error.
type flakyInterpreter struct {
	*stubInterpreter
	failures int
}

func (f *flakyInterpreter) fail() error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("%w: timeout", ErrCollaborator)
	}
	return nil
}

func (f *flakyInterpreter) ClassifyIntent(ctx context.Context, input string) (*IntentReply, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.intent, nil
}

func (f *flakyInterpreter) ChooseDocumentsOrPenalty(ctx context.Context, input string) (*ChoiceReply, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.choice, nil
}
