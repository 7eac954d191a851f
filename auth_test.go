package main

import (
	"errors"
	"strings"
	"testing"
)

func TestAuthRegisterLogin(t *testing.T) {
	db := openTestDB(t)
	auth := NewAuth(db, "test-secret")

	acct, token, err := auth.Register("alice", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.HasPrefix(acct.Key, "user-") || acct.Balance != 10 {
		t.Errorf("registration should open a funded account, got %+v", acct)
	}

	key, user, err := auth.ValidateToken(token)
	if err != nil || key != acct.Key || user != "alice" {
		t.Errorf("token should carry the account, got %q %q %v", key, user, err)
	}

	if _, _, err := auth.Register("alice", "other-pass"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected username taken, got %v", err)
	}
	if _, _, err := auth.Register("a", "hunter22"); err == nil {
		t.Error("short usernames are rejected")
	}
	if _, _, err := auth.Register("bob", "123"); err == nil {
		t.Error("short passwords are rejected")
	}

	got, _, err := auth.Login("alice", "hunter22", "1.2.3.4")
	if err != nil || got.Key != acct.Key {
		t.Errorf("login should return the same account, got %+v %v", got, err)
	}
	if _, _, err := auth.Login("alice", "wrong", "1.2.3.4"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("expected bad credentials, got %v", err)
	}
	if _, _, err := auth.Login("nobody", "hunter22", "1.2.3.4"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("unknown users get the same error, got %v", err)
	}
}

func TestAuthRejectsForeignTokens(t *testing.T) {
	db := openTestDB(t)
	a := NewAuth(db, "secret-a")
	b := NewAuth(db, "secret-b")

	tok, err := a.generateToken("user-1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := b.ValidateToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed with another secret should fail, got %v", err)
	}
	if _, _, err := a.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage should fail, got %v", err)
	}
}

func TestAuthPersistsGeneratedSecret(t *testing.T) {
	db := openTestDB(t)
	a := NewAuth(db, "")
	tok, err := a.generateToken("user-1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	// a restart reuses the stored secret
	b := NewAuth(db, "")
	if _, _, err := b.ValidateToken(tok); err != nil {
		t.Errorf("token should survive a restart, got %v", err)
	}
}

func TestAuthLoginRateLimit(t *testing.T) {
	db := openTestDB(t)
	auth := NewAuth(db, "secret")
	for i := 0; i < maxLoginAttempts; i++ {
		auth.Login("nobody", "x", "9.9.9.9")
	}
	if _, _, err := auth.Login("nobody", "x", "9.9.9.9"); !errors.Is(err, ErrLoginRate) {
		t.Errorf("expected rate limit, got %v", err)
	}
	if _, _, err := auth.Login("nobody", "x", "8.8.8.8"); errors.Is(err, ErrLoginRate) {
		t.Error("other addresses are not limited")
	}
}
