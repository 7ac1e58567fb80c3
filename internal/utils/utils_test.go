package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "ADMIN", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if time.Until(tok.Exp) <= 0 {
		t.Fatalf("token already expired: %v", tok.Exp)
	}
	cl, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if cl.UserID != 42 || cl.Role != "ADMIN" {
		t.Fatalf("claims = %+v", cl)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, _ := NewAccessToken("s3cret", 1, "MEMBER", 5)
	expired, _ := NewAccessToken("s3cret", 1, "MEMBER", -5)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]struct{ secret, raw string }{
		"wrong secret": {"other", good.Token},
		"expired":      {"s3cret", expired.Token},
		"alg none":     {"s3cret", none},
		"garbage":      {"s3cret", "not.a.jwt"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAccessToken(tc.secret, tc.raw); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRefreshTokenHash(t *testing.T) {
	rt, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("raw length %d", len(rt.Raw))
	}
	h := HashRefreshRaw(rt.Raw)
	if len(h) != 64 || h != HashRefreshRaw(rt.Raw) {
		t.Fatalf("hash not stable: %q", h)
	}
}

func TestPasswordHashing(t *testing.T) {
	if _, err := HashPassword("short", bcrypt.MinCost); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("err = %v", err)
	}
	h, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(h, "correct horse") || VerifyPassword(h, "wrong horse") {
		t.Fatalf("verification mismatch")
	}
}
