package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// UserStore is the subset of the user repository the account flows need.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// Session is the result of a successful sign-in.
type Session struct {
	User   *models.User `json:"user"`
	Token  string       `json:"token"`
	Claims *Claims      `json:"-"`
}

// Service implements registration, login, and password change.
type Service struct {
	users  UserStore
	tokens *Tokens
	logger *log.Logger
}

// NewService creates an account service.
func NewService(users UserStore, tokens *Tokens, logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{users: users, tokens: tokens, logger: shared.WithLogger(logger, "component", "auth")}
}

// Tokens returns the service's token issuer.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Register creates an account and signs it in. Validation happens before the store is touched.
func (s *Service) Register(ctx context.Context, email, name, password, confirm string) (*Session, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", shared.ErrInvalidInput)
	}
	if err := ValidatePassword(password, confirm); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: email, Name: strings.TrimSpace(name), PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("registered account", "user", user.ID)
	return s.issue(user)
}

// Login verifies credentials. Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !CheckPassword(user.PasswordHash, password) {
		s.logger.Warn("failed login", "user", user.ID)
		return nil, shared.ErrInvalidCredentials
	}
	return s.issue(user)
}

// ChangePassword replaces the password after re-checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next, confirm string) error {
	if err := ValidatePassword(next, confirm); err != nil {
		return err
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(user.PasswordHash, current) {
		return shared.ErrInvalidCredentials
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", "user", userID)
	return nil
}

func (s *Service) issue(user *models.User) (*Session, error) {
	token, claims, err := s.tokens.Sign(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, Claims: claims}, nil
}

// UserMessage maps account errors onto short user-facing strings.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength)
	case errors.Is(err, shared.ErrPasswordMismatch):
		return "Passwords do not match."
	case errors.Is(err, shared.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, shared.ErrEmailTaken):
		return "An account with this email already exists."
	case errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrSessionExpired):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, shared.ErrNotAuthenticated):
		return "Please sign in."
	case errors.Is(err, shared.ErrInvalidInput):
		return "Please check the form and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
