package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Sessions stores live token ids.
type Sessions interface {
	Save(ctx context.Context, tokenID string, userID int64, ttl time.Duration) error
	Lookup(ctx context.Context, tokenID string) (int64, error)
	Revoke(ctx context.Context, tokenID string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *TokenIssuer
	sessions Sessions
	logger   *slog.Logger
	cost     int
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenIssuer, sessions Sessions, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, sessions: sessions, logger: logger, cost: bcrypt.DefaultCost}
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", shared.NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}

// Login validates email/password credentials and opens a token session.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	token, tokenID, expiresAt, err := s.tokens.Issue(*user)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, tokenID, user.ID, s.tokens.TTL()); err != nil {
		return nil, err
	}
	if err := s.repo.TouchLogin(ctx, user.ID); err != nil {
		s.logger.Warn("record last login", append(shared.LogAttrs(ctx), slog.Any("error", err))...)
	}
	s.logger.Info("user logged in", append(shared.LogAttrs(ctx), slog.Int64("user_id", user.ID), slog.String("email", user.Email))...)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: *user}, nil
}

// Authenticate resolves a bearer token into the caller's principal.
func (s *Service) Authenticate(ctx context.Context, token string) (shared.Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return shared.Principal{}, err
	}
	userID, err := s.sessions.Lookup(ctx, claims.ID)
	if err != nil {
		return shared.Principal{}, err
	}
	if userID != claims.UserID {
		return shared.Principal{}, shared.ErrUnauthorized
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Principal{}, shared.ErrUnauthorized
		}
		return shared.Principal{}, err
	}
	if !user.IsActive {
		return shared.Principal{}, shared.ErrUnauthorized
	}
	return user.Principal(claims.ID), nil
}

// Logout revokes the caller's token.
func (s *Service) Logout(ctx context.Context, p shared.Principal) error {
	if p.TokenID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, p.TokenID); err != nil {
		return err
	}
	s.logger.Info("user logged out", shared.LogAttrs(ctx)...)
	return nil
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, p shared.Principal) (*User, error) {
	return s.repo.FindByID(ctx, p.UserID)
}

// ChangePassword verifies the current password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, p shared.Principal, current, next string) error {
	user, err := s.repo.FindByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return shared.NewValidationError("current_password", "is incorrect")
	}
	hashed, err := s.hash(next)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return err
	}
	s.logger.Info("password changed", shared.LogAttrs(ctx)...)
	return nil
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// CreateUser adds an account. Emails are unique.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	role, ok := ParseRole(req.Role)
	if !ok {
		return nil, shared.NewValidationError("role", "must be admin or user")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, shared.NewValidationError("name", "is required")
	}
	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	u := User{Name: name, Email: normalizeEmail(req.Email), PasswordHash: hashed, Role: role, IsActive: true}
	if err := s.repo.Create(ctx, &u); err != nil {
		return nil, err
	}
	s.logger.Info("user created", append(shared.LogAttrs(ctx), slog.Int64("user_id", u.ID), slog.String("role", u.Role))...)
	return &u, nil
}

// UpdateUser changes name, role or active flag.
func (s *Service) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, shared.NewValidationError("name", "is required")
		}
		u.Name = name
	}
	if req.Role != nil {
		role, ok := ParseRole(*req.Role)
		if !ok {
			return nil, shared.NewValidationError("role", "must be admin or user")
		}
		u.Role = role
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user updated", append(shared.LogAttrs(ctx), slog.Int64("user_id", u.ID))...)
	return u, nil
}

// DeleteUser removes an account other than the caller's own.
func (s *Service) DeleteUser(ctx context.Context, actor shared.Principal, id int64) error {
	if actor.UserID == id {
		return &shared.InvalidStateError{Message: "you cannot delete your own account"}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", append(shared.LogAttrs(ctx), slog.Int64("user_id", id))...)
	return nil
}

// EnsureAdmin creates the admin account when the email is unused, or resets
// its password, role and active flag when it exists.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*User, bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, false, shared.NewValidationError("email", "is required")
	}
	hashed, err := s.hash(password)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		existing.Role = shared.RoleAdmin
		existing.IsActive = true
		if strings.TrimSpace(name) != "" {
			existing.Name = strings.TrimSpace(name)
		}
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		if err := s.repo.UpdatePassword(ctx, existing.ID, hashed); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case errors.Is(err, shared.ErrNotFound):
		if strings.TrimSpace(name) == "" {
			name = "Administrator"
		}
		u := User{Name: strings.TrimSpace(name), Email: email, PasswordHash: hashed, Role: shared.RoleAdmin, IsActive: true}
		if err := s.repo.Create(ctx, &u); err != nil {
			return nil, false, err
		}
		return &u, true, nil
	default:
		return nil, false, err
	}
}
