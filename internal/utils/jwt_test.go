package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openlabtz/lims-backend/internal/workflow"
)

func TestNewAccessTokenClaims(t *testing.T) {
	at, err := NewAccessToken("test-secret", 42, workflow.RoleRegistrar, 15)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if at.Token == "" {
		t.Fatalf("empty token")
	}
	if d := time.Until(at.Exp); d < 14*time.Minute || d > 16*time.Minute {
		t.Fatalf("unexpected expiry %v", at.Exp)
	}

	tok, err := jwt.Parse(at.Token, func(tk *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !tok.Valid {
		t.Fatalf("parse token: %v", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("claims type %T", tok.Claims)
	}
	if sub, _ := claims["sub"].(float64); uint64(sub) != 42 {
		t.Fatalf("sub = %v", claims["sub"])
	}
	if role, _ := claims["role"].(string); role != "Registrar" {
		t.Fatalf("role = %v", claims["role"])
	}
}

func TestNewAccessTokenWrongSecret(t *testing.T) {
	at, err := NewAccessToken("secret-a", 1, workflow.RoleHOD, 5)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	tok, err := jwt.Parse(at.Token, func(tk *jwt.Token) (interface{}, error) {
		return []byte("secret-b"), nil
	})
	if err == nil && tok.Valid {
		t.Fatalf("token validated with the wrong secret")
	}
}

func TestRefreshTokenHashing(t *testing.T) {
	rt, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("raw length = %d, want 96", len(rt.Raw))
	}
	if d := time.Until(rt.Exp); d < 6*24*time.Hour || d > 8*24*time.Hour {
		t.Fatalf("unexpected expiry %v", rt.Exp)
	}
	h1 := HashRefreshRaw(rt.Raw)
	h2 := HashRefreshRaw(rt.Raw)
	if h1 != h2 {
		t.Fatalf("hash not deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h1))
	}
	if h1 == rt.Raw[:64] {
		t.Fatalf("hash must not echo the raw token")
	}

	other, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if other.Raw == rt.Raw {
		t.Fatalf("two refresh tokens must differ")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !VerifyPassword(hash, "s3cret!") {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatalf("wrong password accepted")
	}
	if VerifyPassword("not-a-hash", "s3cret!") {
		t.Fatalf("garbage hash accepted")
	}
}
