package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/timecapsule/timecapsule/internal/auth"
	"github.com/timecapsule/timecapsule/internal/metrics"
	"github.com/timecapsule/timecapsule/internal/model"
	"github.com/timecapsule/timecapsule/internal/repository"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 100
	maxNameLength     = 120
)

// UserStore is the persistence the account service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	VerifyDummy(password string)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID string) (auth.Token, error)
}

// AccountService registers users and exchanges credentials for session tokens.
type AccountService struct {
	users   UserStore
	hasher  PasswordHasher
	tokens  TokenIssuer
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger, recorder metrics.Recorder) *AccountService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		logger:  logger.With("component", "account.service"),
		metrics: recorder,
		now:     time.Now,
	}
}

// RegisterInput defines input for registering a user.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a user with a hashed password.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("nome", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, validationError("nome", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}

	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}

	if n := utf8.RuneCountInString(input.Password); n < minPasswordLength || n > maxPasswordLength {
		return nil, validationError("password", fmt.Sprintf("must be between %d and %d characters", minPasswordLength, maxPasswordLength))
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncUserRegistered()
	s.logger.Info("user_registered", "user_id", user.ID)

	return user, nil
}

// Login checks credentials and issues a session token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (auth.Token, error) {
	normalized, err := normalizeEmail(email)
	if err != nil || password == "" {
		s.metrics.IncLogin("failed")
		return auth.Token{}, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.VerifyDummy(password)
			s.metrics.IncLogin("failed")
			return auth.Token{}, ErrInvalidCredentials
		}
		return auth.Token{}, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return auth.Token{}, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.metrics.IncLogin("failed")
		s.logger.Info("login_failed", "user_id", user.ID)
		return auth.Token{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return auth.Token{}, fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.IncLogin("success")
	s.logger.Info("user_logged_in", "user_id", user.ID)

	return token, nil
}

// normalizeEmail validates a bare address and lowercases it.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", validationError("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationError("email", "must be a valid email address")
	}
	return email, nil
}
