package auth

import (
	"testing"
	"time"
)

func TestAuthenticateRoundTrip(t *testing.T) {
	a := NewAuthenticator("admin", "hunter2", "test-secret", time.Hour)
	if !a.IsEnabled() {
		t.Fatal("password configured but auth disabled")
	}

	token, expires, err := a.Authenticate("admin", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if token == "" || expires <= time.Now().Unix() {
		t.Fatalf("token=%q expires=%d", token, expires)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "admin" {
		t.Fatalf("claims username = %q", claims.Username)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	a := NewAuthenticator("admin", "hunter2", "test-secret", time.Hour)

	if _, _, err := a.Authenticate("admin", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("wrong password: %v", err)
	}
	if _, _, err := a.Authenticate("nobody", "hunter2"); err != ErrInvalidCredentials {
		t.Fatalf("wrong user: %v", err)
	}
}

func TestDisabledWithoutPassword(t *testing.T) {
	a := NewAuthenticator("admin", "", "", time.Hour)
	if a.IsEnabled() {
		t.Fatal("auth enabled with no password")
	}
	if _, _, err := a.Authenticate("admin", ""); err != ErrAuthDisabled {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateRejectsForeignToken(t *testing.T) {
	a := NewAuthenticator("admin", "hunter2", "secret-a", time.Hour)
	b := NewAuthenticator("admin", "hunter2", "secret-b", time.Hour)

	token, _, err := a.Authenticate("admin", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestExpiredToken(t *testing.T) {
	a := NewAuthenticator("admin", "hunter2", "test-secret", -time.Minute)
	// A non-positive expiry falls back to the default; generate directly
	// with a short-lived manager instead.
	m := NewJWTManager("test-secret", time.Nanosecond)
	token, _, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := a.ValidateToken(token); err != ErrExpiredToken {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
}
