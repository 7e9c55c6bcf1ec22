// Package auth contains registration, login and profile business logic.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/byonco/webgate/internal/lib/jwt"
	"github.com/byonco/webgate/internal/lib/password"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/services/notifier"
	"github.com/byonco/webgate/internal/storage"
)

// Auth errors surfaced to handlers.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrEmailTaken         = errors.New("email already registered")
)

const resetTokenTTL = time.Hour

// UserRepository is the persistence contract for accounts.
type UserRepository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	UpdateProfile(ctx context.Context, uid, displayName string, profileCompleted bool) error
	SetResetToken(ctx context.Context, uid, token string, expiresAt time.Time) error
	GetUserByResetToken(ctx context.Context, token string) (*models.User, error)
	UpdatePassword(ctx context.Context, uid, passwordHash string) error
}

// Notifier publishes the password-reset event.
type Notifier interface {
	PublishPasswordReset(event notifier.PasswordReset)
}

// Service implements registration, login, profile and password reset.
type Service struct {
	users    UserRepository
	jwtMaker jwt.Maker
	notifier Notifier
}

// New creates an auth Service.
func New(users UserRepository, jwtMaker jwt.Maker, n Notifier) *Service {
	return &Service{
		users:    users,
		jwtMaker: jwtMaker,
		notifier: n,
	}
}

// Register creates an account with role "user", an incomplete profile and
// a hashed password, and returns a session token for it.
func (s *Service) Register(ctx context.Context, email, displayName, rawPassword string) (string, *models.Session, error) {
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return "", nil, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", nil, err
	}
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", nil, err
	}
	user := models.User{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hashed,
		Role:         "user",
	}
	uid, err := s.users.RegisterUser(ctx, user)
	if err != nil {
		return "", nil, err
	}
	return s.issueToken(uid, email, displayName, "user", false)
}

// Login verifies the password and returns a session token.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (string, *models.Session, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	return s.issueToken(user.UID, user.Email, user.DisplayName, user.Role, user.ProfileCompleted)
}

// ValidateToken parses a session token and returns the session it carries.
func (s *Service) ValidateToken(_ context.Context, token string) (*models.Session, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return claims.Session(), nil
}

// UpdateProfile stores the profile fields, marks the profile completed
// and reissues the session token so guards see the new state.
func (s *Service) UpdateProfile(ctx context.Context, sess *models.Session, displayName string) (string, *models.Session, error) {
	if err := s.users.UpdateProfile(ctx, sess.UserUID, displayName, true); err != nil {
		return "", nil, err
	}
	return s.issueToken(sess.UserUID, sess.Email, displayName, sess.Role, true)
}

// Profile returns the stored account for the session.
func (s *Service) Profile(ctx context.Context, sess *models.Session) (*models.User, error) {
	return s.users.GetUserByUID(ctx, sess.UserUID)
}

// ForgotPassword stores a reset token and publishes the notification
// event. An unknown email is not an error so the endpoint does not leak
// which addresses exist.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	token := uuid.NewString()
	if err := s.users.SetResetToken(ctx, user.UID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}
	s.notifier.PublishPasswordReset(notifier.PasswordReset{Email: user.Email, ResetToken: token})
	return nil
}

// ResetPassword consumes an unexpired reset token and replaces the
// password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.users.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.UID, hashed)
}

func (s *Service) issueToken(uid, email, displayName, role string, profileCompleted bool) (string, *models.Session, error) {
	token, err := s.jwtMaker.GenerateToken(uid, email, displayName, role, profileCompleted)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, &models.Session{
		UserUID:          uid,
		Email:            email,
		DisplayName:      displayName,
		Role:             role,
		ProfileCompleted: profileCompleted,
	}, nil
}
