package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tbxark/rneagent/types"
)

type stateKeyContext struct{}

// WithStateKey sets the user id a turn is routed to.
func WithStateKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, stateKeyContext{}, key)
}

// StateKeyFromContext gets the user id from the context.
func StateKeyFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(stateKeyContext{})
	if value == nil {
		return "", false
	}
	key, ok := value.(string)
	return key, ok && key != ""
}

// SessionStore owns the dialogue state of every user. Returned sessions are copies.
type SessionStore struct {
	cache SessionCache
	locks *keyedMutex
	slots map[types.SlotKey]struct{}
	now   func() time.Time
}

func NewSessionStore(cache SessionCache, flow *FlowDefinition) *SessionStore {
	slots := make(map[types.SlotKey]struct{}, len(flow.Slots))
	for _, key := range flow.Keys() {
		slots[key] = struct{}{}
	}
	return &SessionStore{
		cache: cache,
		locks: newKeyedMutex(),
		slots: slots,
		now:   time.Now,
	}
}

func NewMemorySessionStore(flow *FlowDefinition) *SessionStore {
	return NewSessionStore(NewMemorySessionCache(), flow)
}

// Lock serializes turns of the same user. Callers must call the returned function.
func (s *SessionStore) Lock(userID string) func() {
	return s.locks.Lock(userID)
}

func (s *SessionStore) GetOrCreate(ctx context.Context, userID string) (*types.Session, error) {
	key, err := sessionKey(userID)
	if err != nil {
		return nil, err
	}
	session, ok, err := s.cache.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ok {
		return session, nil
	}
	now := s.now()
	session = &types.Session{
		ID:        uuid.NewString(),
		Slots:     types.Slots{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.cache.Save(ctx, key, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.Debug("Created session", "user_id", userID, "session_id", session.ID)
	return session, nil
}

func (s *SessionStore) update(ctx context.Context, userID string, fn func(session *types.Session)) error {
	session, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	fn(session)
	session.UpdatedAt = s.now()
	key, _ := sessionKey(userID)
	if err := s.cache.Save(ctx, key, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) checkSlot(key types.SlotKey) error {
	if _, ok := s.slots[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, key)
	}
	return nil
}

// SetSlot stores value and clears the awaited slot marker.
func (s *SessionStore) SetSlot(ctx context.Context, userID string, key types.SlotKey, value string) error {
	if err := s.checkSlot(key); err != nil {
		return err
	}
	return s.update(ctx, userID, func(session *types.Session) {
		session.Slots[key] = value
		session.Awaiting = ""
	})
}

func (s *SessionStore) ClearSlot(ctx context.Context, userID string, key types.SlotKey) error {
	if err := s.checkSlot(key); err != nil {
		return err
	}
	return s.update(ctx, userID, func(session *types.Session) {
		delete(session.Slots, key)
	})
}

// SetAwaiting marks key as the slot the next message answers. Disambiguation data of a
// previously awaited slot is dropped.
func (s *SessionStore) SetAwaiting(ctx context.Context, userID string, key types.SlotKey) error {
	if key != "" {
		if err := s.checkSlot(key); err != nil {
			return err
		}
	}
	return s.update(ctx, userID, func(session *types.Session) {
		if session.Awaiting != key {
			session.Candidates = nil
			session.FollowUp = ""
		}
		session.Awaiting = key
	})
}

func (s *SessionStore) SetFollowUp(ctx context.Context, userID string, candidates []string, prompt string) error {
	return s.update(ctx, userID, func(session *types.Session) {
		session.Candidates = append([]string(nil), candidates...)
		session.FollowUp = prompt
	})
}

func (s *SessionStore) ClearFollowUp(ctx context.Context, userID string) error {
	return s.update(ctx, userID, func(session *types.Session) {
		session.Candidates = nil
		session.FollowUp = ""
	})
}

// Reset deletes the session of userID. Unknown users are a no-op.
func (s *SessionStore) Reset(ctx context.Context, userID string) error {
	key, err := sessionKey(userID)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Exists reports whether userID currently has a session.
func (s *SessionStore) Exists(ctx context.Context, userID string) (bool, error) {
	key, err := sessionKey(userID)
	if err != nil {
		return false, err
	}
	_, ok, err := s.cache.Load(ctx, key)
	return ok, err
}
