package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/shopledger/ledger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service registers users and logs them in.
type Service struct {
	accounts ledger.AccountStore
	tokens   *Tokens
	cost     int
	now      func() time.Time
	log      *zap.Logger
}

type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(accounts ledger.AccountStore, tokens *Tokens, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		tokens:   tokens,
		cost:     bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
	Role     ledger.Role // empty means user
}

// Register creates a customer account with a zero balance. Admin accounts
// cannot be self-registered.
func (s *Service) Register(ctx context.Context, in RegisterInput) (ledger.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	switch {
	case email == "":
		return ledger.User{}, &ledger.ValidationError{Field: "email", Message: "is required"}
	case username == "":
		return ledger.User{}, &ledger.ValidationError{Field: "username", Message: "is required"}
	case in.Password == "":
		return ledger.User{}, &ledger.ValidationError{Field: "password", Message: "is required"}
	}

	role := in.Role
	if role == "" {
		role = ledger.RoleUser
	}
	if !role.Valid() {
		return ledger.User{}, &ledger.ValidationError{Field: "role", Message: "must be user or admin"}
	}
	if role == ledger.RoleAdmin {
		return ledger.User{}, fmt.Errorf("%w: admin accounts cannot be self-registered", ledger.ErrForbidden)
	}

	return s.create(ctx, email, username, in.Password, role)
}

func (s *Service) create(ctx context.Context, email, username, password string, role ledger.Role) (ledger.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return ledger.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := ledger.User{
		Account: ledger.Account{
			UserID:   ledger.UserID(uuid.NewString()),
			Email:    email,
			Username: username,
			Role:     role,
			Version:  1,
		},
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.accounts.CreateUser(ctx, u); err != nil {
		return ledger.User{}, err
	}

	s.log.Info("user registered",
		zap.String("user_id", string(u.UserID)),
		zap.String("username", username),
		zap.String("role", string(role)),
	)
	return u, nil
}

type LoginResult struct {
	Token string
	User  ledger.User
}

// Login checks the password and issues a token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return LoginResult{}, &ledger.ValidationError{Field: "email", Message: "is required"}
	}
	if password == "" {
		return LoginResult{}, &ledger.ValidationError{Field: "password", Message: "is required"}
	}

	invalid := fmt.Errorf("%w: invalid credentials", ledger.ErrUnauthenticated)
	u, err := s.accounts.GetUserByEmail(ctx, email)
	if errors.Is(err, ledger.ErrNotFound) {
		return LoginResult{}, invalid
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Info("login rejected", zap.String("user_id", string(u.UserID)))
		return LoginResult{}, invalid
	}

	token, err := s.tokens.Issue(ledger.Principal{
		UserID:   u.UserID,
		Role:     u.Role,
		Username: u.Username,
		Email:    u.Email,
	})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: *u}, nil
}

// EnsureAdmin creates an admin account unless the email is already taken.
// Returns true when an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, username, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, &ledger.ValidationError{Field: "seed", Message: "admin email and password are required"}
	}
	if username == "" {
		username = "admin"
	}

	_, err := s.accounts.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return false, err
	}
	if _, err := s.create(ctx, email, username, password, ledger.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
