package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/kvstore"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	signInFailedMessage  = "Unable to sign in. Please try again."
	sessionStoreMessage  = "Your session could not be saved. Please sign in again."
	defaultResetMessage  = "Password updated. You can now sign in."
	defaultForgotMessage = "If the address is registered, a reset link is on its way."
)

var (
	errMissingGateway = errors.New("auth: gateway is required")
	errMissingStore   = errors.New("auth: key-value store is required")

	validate = validator.New()
)

// Credentials is the sign-in form.
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type registration struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type passwordChange struct {
	Token    string `validate:"required"`
	Password string `validate:"required,min=8"`
}

// SessionConfig wires the session to its collaborators.
type SessionConfig struct {
	Gateway   Gateway
	Store     kvstore.Store
	Inspector *TokenInspector
	Logger    *zap.Logger
}

// Session owns the current identity and its lifecycle:
//
//	loading -> anonymous | authenticated   (Initialize)
//	anonymous -> authenticated             (SignIn)
//	authenticated -> anonymous             (SignOut, Invalidate)
type Session struct {
	gateway   Gateway
	store     kvstore.Store
	inspector *TokenInspector
	logger    *zap.Logger

	mu        sync.RWMutex
	status    Status
	user      *User
	token     string
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewSession constructs a session in the loading state.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Gateway == nil {
		return nil, errMissingGateway
	}
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	inspector := cfg.Inspector
	if inspector == nil {
		inspector = NewTokenInspector(nil, 0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		gateway:   cfg.Gateway,
		store:     cfg.Store,
		inspector: inspector,
		logger:    logger,
		status:    StatusLoading,
		listeners: make(map[int]func(Snapshot)),
	}, nil
}

// Initialize resolves the loading state using the stored credential.
func (s *Session) Initialize(ctx context.Context) Snapshot {
	if s.Snapshot().Status != StatusLoading {
		return s.Snapshot()
	}

	stored, ok, err := s.store.Get(ctx, kvstore.KeyToken)
	if err != nil {
		s.logger.Warn("stored credential unreadable", zap.Error(err))
		return s.resolveAnonymous()
	}
	stored = strings.TrimSpace(stored)
	if !ok || stored == "" {
		return s.resolveAnonymous()
	}

	if s.inspector.Expired(stored) {
		s.logger.Info("stored credential expired")
		s.forgetStoredToken(ctx)
		return s.resolveAnonymous()
	}

	user, err := s.gateway.Verify(ctx, stored)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuthorization {
			s.forgetStoredToken(ctx)
		} else {
			s.logger.Warn("session verification failed", zap.Error(err))
		}
		return s.resolveAnonymous()
	}

	return s.transition(StatusLoading, StatusAuthenticated, &user, stored)
}

// SignIn never panics or returns an error: the outcome is a Result.
func (s *Session) SignIn(ctx context.Context, email, password string) apperr.Result[User] {
	credentials := Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := validate.Struct(credentials); err != nil {
		return apperr.Err[User](apperr.KindValidation, "Enter a valid email and password.")
	}

	switch s.Snapshot().Status {
	case StatusLoading:
		return apperr.Err[User](apperr.KindConflict, "The session is still loading.")
	case StatusAuthenticated:
		return apperr.Err[User](apperr.KindConflict, "You are already signed in.")
	}

	user, token, err := s.gateway.SignIn(ctx, credentials.Email, credentials.Password)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindAuthorization, apperr.KindValidation, apperr.KindConflict:
			return apperr.Err[User](apperr.KindOf(err), apperr.MessageOf(err))
		default:
			s.logger.Warn("sign in failed", zap.Error(err))
			return apperr.Err[User](apperr.KindOf(err), signInFailedMessage)
		}
	}

	if err := s.store.Set(ctx, kvstore.KeyToken, token); err != nil {
		s.logger.Error("credential persistence failed", zap.Error(err))
		return apperr.Err[User](apperr.KindStorage, sessionStoreMessage)
	}

	snapshot := s.transition(StatusAnonymous, StatusAuthenticated, &user, token)
	if snapshot.Status != StatusAuthenticated {
		return apperr.Err[User](apperr.KindConflict, "The session changed while signing in.")
	}
	return apperr.Ok(user)
}

// SignOut drops the identity and the stored credential.
func (s *Session) SignOut(ctx context.Context) Snapshot {
	s.forgetStoredToken(ctx)
	return s.transition(StatusAuthenticated, StatusAnonymous, nil, "")
}

// Invalidate is the global reaction to a 401 from any request.
func (s *Session) Invalidate() {
	if s.Snapshot().Status != StatusAuthenticated {
		return
	}
	s.logger.Info("session invalidated by server")
	s.SignOut(context.Background())
}

// Register creates an account; the operator signs in afterwards.
func (s *Session) Register(ctx context.Context, name, email, password string) apperr.Result[string] {
	form := registration{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Password: password}
	if err := validate.Struct(form); err != nil {
		return apperr.Err[string](apperr.KindValidation, "Name, a valid email, and a password of at least 8 characters are required.")
	}
	message, err := s.gateway.Register(ctx, form.Name, form.Email, form.Password)
	if err != nil {
		return apperr.ErrFrom[string](err)
	}
	return apperr.Ok(message)
}

// ForgotPassword requests a reset link.
func (s *Session) ForgotPassword(ctx context.Context, email string) apperr.Result[string] {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return apperr.Err[string](apperr.KindValidation, "Enter a valid email address.")
	}
	message, err := s.gateway.ForgotPassword(ctx, email)
	if err != nil {
		return apperr.ErrFrom[string](err)
	}
	if message == "" {
		message = defaultForgotMessage
	}
	return apperr.Ok(message)
}

// ResetPassword completes a reset started by ForgotPassword.
func (s *Session) ResetPassword(ctx context.Context, token, password string) apperr.Result[string] {
	return s.changePassword(ctx, token, password, s.gateway.ResetPassword)
}

// SetPassword completes an invitation.
func (s *Session) SetPassword(ctx context.Context, token, password string) apperr.Result[string] {
	return s.changePassword(ctx, token, password, s.gateway.SetPassword)
}

func (s *Session) changePassword(ctx context.Context, token, password string, call func(context.Context, string, string) (string, error)) apperr.Result[string] {
	form := passwordChange{Token: strings.TrimSpace(token), Password: password}
	if err := validate.Struct(form); err != nil {
		return apperr.Err[string](apperr.KindValidation, "A valid link and a password of at least 8 characters are required.")
	}
	message, err := call(ctx, form.Token, form.Password)
	if err != nil {
		return apperr.ErrFrom[string](err)
	}
	if message == "" {
		message = defaultResetMessage
	}
	return apperr.Ok(message)
}

// IsAdmin is pure over the loaded identity.
func (s *Session) IsAdmin() bool {
	return s.Snapshot().IsAdmin()
}

// Token implements apiclient.TokenSource; it is empty unless authenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusAuthenticated {
		return ""
	}
	return s.token
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers a listener called after every transition.
func (s *Session) Subscribe(listener func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) resolveAnonymous() Snapshot {
	return s.transition(StatusLoading, StatusAnonymous, nil, "")
}

// transition applies from -> to only when the session is still in from.
func (s *Session) transition(from, to Status, user *User, token string) Snapshot {
	s.mu.Lock()
	if s.status != from {
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		return snapshot
	}
	s.status = to
	if to == StatusAuthenticated {
		copied := *user
		s.user = &copied
		s.token = token
	} else {
		s.user = nil
		s.token = ""
	}
	snapshot := s.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.mu.Unlock()

	s.logger.Debug("session transition", zap.String("from", string(from)), zap.String("to", string(to)))
	for _, listener := range listeners {
		listener(snapshot)
	}
	return snapshot
}

func (s *Session) snapshotLocked() Snapshot {
	snapshot := Snapshot{Status: s.status, token: s.token}
	if s.user != nil {
		copied := *s.user
		snapshot.User = &copied
	}
	return snapshot
}

func (s *Session) forgetStoredToken(ctx context.Context) {
	if err := s.store.Delete(ctx, kvstore.KeyToken); err != nil {
		s.logger.Warn("stored credential removal failed", zap.Error(err))
	}
}
