// Package library is the persistence client: every library, progress, goal, and achievement
// operation resolves the signed-in user and scopes its queries to that user.
package library

import (
	"fmt"
	"sync"

	"github.com/desertthunder/manhwatrack/internal/auth"
	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/storage"
)

// AuthEvent describes an auth state change.
type AuthEvent string

const (
	SignedIn  AuthEvent = "SIGNED_IN"
	SignedOut AuthEvent = "SIGNED_OUT"
)

// Session holds the current token and the user id resolved from it.
//
// The id is resolved once and memoized until the next auth state change.
type Session struct {
	mu        sync.Mutex
	tokens    *auth.Tokens
	store     storage.Store
	token     string
	userID    string
	listeners map[int]func(AuthEvent)
	nextID    int
}

// NewSession creates a session that resolves user ids with tokens. When store is non-nil the
// token is restored from and mirrored to it under [storage.KeyAuthToken].
func NewSession(tokens *auth.Tokens, store storage.Store) *Session {
	s := &Session{tokens: tokens, store: store, listeners: make(map[int]func(AuthEvent))}
	if store != nil {
		if token, ok := store.Get(storage.KeyAuthToken); ok {
			s.token = token
		}
	}
	return s
}

// NewUserSession returns a session already resolved to userID, for callers that
// authenticated the request themselves.
func NewUserSession(userID string) *Session {
	return &Session{userID: userID, listeners: make(map[int]func(AuthEvent))}
}

// UserID returns the signed-in user's id.
func (s *Session) UserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID != "" {
		return s.userID, nil
	}
	if s.token == "" || s.tokens == nil {
		return "", shared.ErrNotAuthenticated
	}

	id, err := s.tokens.ResolveUserID(s.token)
	if err != nil {
		return "", fmt.Errorf("resolve session user: %w", err)
	}
	s.userID = id
	return id, nil
}

// Token returns the current token, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SignIn replaces the token and drops the memoized user id.
func (s *Session) SignIn(token string) error {
	s.mu.Lock()
	s.token = token
	s.userID = ""
	var err error
	if s.store != nil {
		err = s.store.Set(storage.KeyAuthToken, token)
	}
	s.mu.Unlock()

	s.notify(SignedIn)
	return err
}

// SignOut clears the token and the memoized user id.
func (s *Session) SignOut() error {
	s.mu.Lock()
	s.token = ""
	s.userID = ""
	var err error
	if s.store != nil {
		err = s.store.Remove(storage.KeyAuthToken)
	}
	s.mu.Unlock()

	s.notify(SignedOut)
	return err
}

// OnAuthStateChange registers fn for sign-in and sign-out events and returns a function that
// unregisters it.
func (s *Session) OnAuthStateChange(fn func(AuthEvent)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(ev AuthEvent) {
	s.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
