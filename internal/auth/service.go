package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayunierto/ascencio-tax-api/internal/apperr"
	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/internal/notification"
	"github.com/ayunierto/ascencio-tax-api/internal/storage"
	libauth "github.com/ayunierto/ascencio-tax-api/libs/auth"
)

type UserStore interface {
	CreateWithPassword(ctx context.Context, u *model.User, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (*model.User, string, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type Notifier interface {
	UserCreated(ctx context.Context, ev notification.UserEvent) error
}

// Service handles registration, login and token verification. Tokens issued
// here are HS256 JWTs signed with a shared secret; when a JWKS client is
// configured, RS256 tokens from an external identity provider are accepted as
// well.
type Service struct {
	users    UserStore
	notifier Notifier
	secret   string
	tokenTTL time.Duration
	jwks     *libauth.JWKSClient
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(users UserStore, notifier Notifier, secret string, tokenTTL time.Duration, logger *slog.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		users:    users,
		notifier: notifier,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Password    string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, "", apperr.E(apperr.ErrInvalidArgument, "a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, "", apperr.E(apperr.ErrInvalidArgument, "password must be at least 8 characters")
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, "", apperr.E(apperr.ErrInvalidArgument, "first and last name are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &model.User{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Role:        "client",
	}
	if err := s.users.CreateWithPassword(ctx, user, string(hash)); err != nil {
		if storage.IsConflict(err) {
			return nil, "", apperr.E(apperr.ErrConflict, "email already registered")
		}
		return nil, "", err
	}

	if err := s.notifier.UserCreated(ctx, notification.UserEvent{
		UserID: user.ID,
		Name:   user.FullName(),
		Email:  user.Email,
	}); err != nil {
		s.logger.Warn("user created notification failed", "user_id", user.ID, "err", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, hash, err := s.users.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, "", apperr.E(apperr.ErrForbidden, "invalid credentials")
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, "", apperr.E(apperr.ErrForbidden, "invalid credentials")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apperr.E(apperr.ErrNotFound, "user %s", userID)
		}
		return nil, err
	}
	return user, nil
}

// UseJWKS enables verification of RS256 tokens against the given key set.
// Locally issued HS256 tokens keep working alongside.
func (s *Service) UseJWKS(client *libauth.JWKSClient) {
	s.jwks = client
}

// VerifyToken validates the bearer token and returns its claims. The token's
// alg header picks the verification path: RS256 goes through the JWKS key
// set, everything else through the shared secret.
func (s *Service) VerifyToken(token string) (*libauth.Claims, error) {
	header, err := libauth.ParseHeader(token)
	if err != nil {
		return nil, apperr.E(apperr.ErrForbidden, "invalid token")
	}

	if header.Alg == "RS256" && s.jwks != nil {
		key, err := s.jwks.Get(header.Kid)
		if err != nil {
			s.logger.Warn("jwks key lookup failed", "kid", header.Kid, "err", err)
			return nil, apperr.E(apperr.ErrForbidden, "invalid token")
		}
		claims, err := libauth.VerifyRS256(token, key)
		if err != nil {
			return nil, apperr.E(apperr.ErrForbidden, "invalid token")
		}
		return claims, nil
	}

	claims, err := libauth.ParseAndVerifyHS256(token, s.secret)
	if err != nil {
		return nil, apperr.E(apperr.ErrForbidden, "invalid token")
	}
	return claims, nil
}

func (s *Service) issueToken(user *model.User) (string, error) {
	now := s.now()
	return libauth.SignHS256(libauth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Role:  user.Role,
		Iat:   now.Unix(),
		Exp:   now.Add(s.tokenTTL).Unix(),
	}, s.secret)
}
