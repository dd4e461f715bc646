package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stockpredict/server/internal/app/domain/user"
	"github.com/stockpredict/server/internal/app/storage/memory"
	"github.com/stockpredict/server/internal/config"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, config.AuthConfig{
		Secret:          "test-secret",
		MasterSecret:    "master-secret",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}, nil)
	return svc, store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "pass1234", user.RoleUser, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.UID == 0 {
		t.Fatalf("expected assigned uid")
	}
	if u.PasswordHash == "pass1234" {
		t.Fatalf("password stored in plain text")
	}

	logged, pair, err := svc.Login(ctx, "alice", "pass1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", pair)
	}
	if logged.AccessToken != pair.AccessToken {
		t.Fatalf("access token not recorded on user")
	}

	claims, err := ParseToken(pair.AccessToken, svc.Secret())
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("token type = %s, want access", claims.TokenType)
	}
	if claims.Nickname != "alice" || claims.Role != "user" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	uid, err := claims.UID()
	if err != nil || uid != u.UID {
		t.Fatalf("claims uid = %d (%v), want %d", uid, err, u.UID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "pass1234", user.RoleUser, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "pass1234"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterDuplicateNickname(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "pass1234", user.RoleUser, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "other123", user.RoleUser, ""); err == nil {
		t.Fatalf("duplicate nickname should fail")
	}
}

func TestRegisterMasterRequiresSecret(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "boss", "pass1234", user.RoleMaster, "wrong"); err == nil {
		t.Fatalf("master registration with wrong secret should fail")
	}
	u, err := svc.Register(ctx, "boss", "pass1234", user.RoleMaster, "master-secret")
	if err != nil {
		t.Fatalf("master registration: %v", err)
	}
	if u.Role != user.RoleMaster {
		t.Fatalf("role = %s, want master", u.Role)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "pass1234", user.RoleUser, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, pair, err := svc.Login(ctx, "alice", "pass1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	fresh, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.AccessToken == "" {
		t.Fatalf("expected new access token")
	}

	// The old refresh token was rotated out.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatalf("stale refresh token should be rejected")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "pass1234", user.RoleUser, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, pair, err := svc.Login(ctx, "alice", "pass1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.AccessToken); err == nil {
		t.Fatalf("access token must not refresh a session")
	}
}

func TestLogoutClearsTokens(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "pass1234", user.RoleUser, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice", "pass1234"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, u.UID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	stored, err := store.GetUser(ctx, u.UID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.AccessToken != "" || stored.RefreshToken != "" {
		t.Fatalf("tokens not cleared: %+v", stored)
	}
}
