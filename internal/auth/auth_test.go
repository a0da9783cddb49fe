package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"spendi/internal/storage"
)

func testService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewService(repo, ttl)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := testService(t, 0)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ada@Example.com", "Ada", "correct horse battery")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}

	got, token, err := svc.Login(ctx, "ADA@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("login returned user %d, want %d", got.ID, user.ID)
	}
	if token == "" {
		t.Fatal("expected a session token")
	}

	authed, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Errorf("authenticate returned user %d, want %d", authed.ID, user.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := testService(t, 0)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		userName string
		password string
		wantErr  error
	}{
		{"short password", "a@b.com", "A", "short", ErrWeakPassword},
		{"missing at sign", "nope", "A", "long enough pw", nil},
		{"empty name", "a@b.com", "  ", "long enough pw", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.userName, tt.password)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := testService(t, 0)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dup@example.com", "One", "password123"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, "dup@example.com", "Two", "password456")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("got %v, want ErrEmailTaken", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := testService(t, 0)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@b.com", "A", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, tt := range []struct {
		name, email, password string
	}{
		{"wrong password", "a@b.com", "password124"},
		{"unknown email", "ghost@b.com", "password123"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Login(ctx, tt.email, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("got %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	svc := testService(t, 0)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@b.com", "A", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, token, err := svc.Login(ctx, "a@b.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("got %v, want ErrInvalidCredentials after logout", err)
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	svc := testService(t, -time.Hour) // negative ttl is replaced by the default
	if svc.ttl != DefaultSessionTTL {
		t.Fatalf("ttl = %v, want default", svc.ttl)
	}

	// Force an already-expired session through the repository directly.
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "exp.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	user, err := repo.CreateUser(ctx, "a@b.com", "A", "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.CreateSession(ctx, hashToken("tok"), user.ID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("create session: %v", err)
	}

	expired := NewService(repo, time.Hour)
	if _, err := expired.Authenticate(ctx, "tok"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("got %v, want ErrInvalidCredentials for expired session", err)
	}
}

func TestTokensAreUnique(t *testing.T) {
	a, err := newToken()
	if err != nil {
		t.Fatal(err)
	}
	b, err := newToken()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two tokens collided")
	}
	if len(a) != tokenBytes*2 {
		t.Errorf("token length %d, want %d", len(a), tokenBytes*2)
	}
}
