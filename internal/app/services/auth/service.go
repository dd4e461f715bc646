// Package auth handles user registration, login and JWT session tokens.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stockpredict/server/internal/app/domain/user"
	"github.com/stockpredict/server/internal/app/storage"
	"github.com/stockpredict/server/internal/config"
	"github.com/stockpredict/server/pkg/logger"
)

// ErrInvalidCredentials is returned for a wrong nickname/password pair.
var ErrInvalidCredentials = errors.New("invalid nickname or password")

// Service manages users and their session tokens.
type Service struct {
	users        storage.UserStore
	secret       []byte
	masterSecret string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	log          *logger.Logger
}

// New constructs an auth service.
func New(users storage.UserStore, cfg config.AuthConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{
		users:        users,
		secret:       []byte(cfg.Secret),
		masterSecret: cfg.MasterSecret,
		accessTTL:    cfg.AccessTokenTTL,
		refreshTTL:   cfg.RefreshTokenTTL,
		log:          log,
	}
}

// Secret exposes the signing key for the HTTP auth middleware.
func (s *Service) Secret() []byte { return s.secret }

// HashPassword hashes a password with SHA-256, hex encoded.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func verifyPassword(password, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashPassword(password)), []byte(hash)) == 1
}

// Register creates a user. Registering a master account requires the
// configured master secret.
func (s *Service) Register(ctx context.Context, nickname, password string, role user.Role, masterSecret string) (user.User, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return user.User{}, fmt.Errorf("nickname is required")
	}
	if len(password) < 4 {
		return user.User{}, fmt.Errorf("password must be at least 4 characters")
	}
	if role == "" {
		role = user.RoleUser
	}
	if !role.Valid() {
		return user.User{}, fmt.Errorf("invalid role %q", role)
	}
	if role == user.RoleMaster {
		if s.masterSecret == "" || masterSecret != s.masterSecret {
			return user.User{}, fmt.Errorf("master registration not allowed")
		}
	}

	if _, err := s.users.GetUserByNickname(ctx, nickname); err == nil {
		return user.User{}, fmt.Errorf("nickname %q is already taken", nickname)
	}

	u, err := s.users.CreateUser(ctx, user.User{
		Nickname:     nickname,
		PasswordHash: HashPassword(password),
		Role:         role,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.WithField("uid", u.UID).WithField("role", string(u.Role)).Info("user registered")
	return u, nil
}

// Login verifies credentials and issues a fresh token pair. The issued
// tokens are stored on the user so logout can invalidate them.
func (s *Service) Login(ctx context.Context, nickname, password string) (user.User, TokenPair, error) {
	u, err := s.users.GetUserByNickname(ctx, strings.TrimSpace(nickname))
	if err != nil {
		return user.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if !verifyPassword(password, u.PasswordHash) {
		return user.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(u.UID, u.Nickname, string(u.Role))
	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	u.AccessToken = pair.AccessToken
	u.RefreshToken = pair.RefreshToken
	u, err = s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	s.log.WithField("uid", u.UID).Info("user logged in")
	return u, pair, nil
}

// Refresh validates a refresh token and issues a new pair. The token must
// match the one recorded at login.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := ParseToken(refreshToken, s.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("invalid refresh token: %w", err)
	}
	if claims.TokenType != TokenTypeRefresh {
		return TokenPair{}, fmt.Errorf("token is not a refresh token")
	}

	uid, err := claims.UID()
	if err != nil {
		return TokenPair{}, fmt.Errorf("invalid refresh token subject: %w", err)
	}
	u, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return TokenPair{}, err
	}
	if u.RefreshToken != refreshToken {
		return TokenPair{}, fmt.Errorf("refresh token has been revoked")
	}

	pair, err := s.issuePair(u.UID, u.Nickname, string(u.Role))
	if err != nil {
		return TokenPair{}, err
	}

	u.AccessToken = pair.AccessToken
	u.RefreshToken = pair.RefreshToken
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout clears the user's recorded tokens.
func (s *Service) Logout(ctx context.Context, uid int64) error {
	u, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	u.AccessToken = ""
	u.RefreshToken = ""
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}
	s.log.WithField("uid", uid).Info("user logged out")
	return nil
}

// GetUser returns a user by UID.
func (s *Service) GetUser(ctx context.Context, uid int64) (user.User, error) {
	return s.users.GetUser(ctx, uid)
}

// ListUsers returns all users. Callers enforce the master-role check.
func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.users.ListUsers(ctx)
}
