package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/pkg/config"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "super-secret", Issuer: "bidhouse-auth"}

func TestMintAndParseRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := MintAccessToken(testJWT, time.Now(), time.Hour, AccessTokenPayload{UserID: userID})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user %s got %s", userID, claims.UserID)
	}
	if claims.Role != enums.UserRoleMember {
		t.Fatalf("expected default member role, got %s", claims.Role)
	}
	if claims.Subject != userID.String() {
		t.Fatalf("expected subject to carry user id, got %q", claims.Subject)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongIssuerOrSecret(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := testJWT
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}

	other = testJWT
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}
}

func TestMintValidatesInput(t *testing.T) {
	if _, err := MintAccessToken(config.JWTConfig{}, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New()}); err == nil {
		t.Fatal("expected missing secret to fail")
	}
	if _, err := MintAccessToken(testJWT, time.Now(), time.Hour, AccessTokenPayload{}); err == nil {
		t.Fatal("expected missing user id to fail")
	}
	if _, err := MintAccessToken(testJWT, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: "root"}); err == nil {
		t.Fatal("expected invalid role to fail")
	}
}
