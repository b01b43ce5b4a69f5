package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken(42, "a@b.c", "MANAGER", "secret", 15)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ValidateAccessToken(token, "secret")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 || claims.Role != "MANAGER" || claims.Issuer != Issuer || claims.Subject != "42" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ValidateAccessToken(token, "other"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("wrong secret: %v", err)
	}
}

func TestExpiredTokens(t *testing.T) {
	access, _ := GenerateAccessToken(1, "a@b.c", "ADMIN", "secret", -1)
	if _, err := ValidateAccessToken(access, "secret"); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("access: %v", err)
	}
	refresh, _ := GenerateRefreshToken(1, "id", "secret", -1)
	if _, err := ValidateRefreshToken(refresh, "secret"); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("refresh: %v", err)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	token, err := GenerateRefreshToken(7, "abc", "refresh", 7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ValidateRefreshToken(token, "refresh")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 7 || claims.TokenID != "abc" {
		t.Errorf("claims = %+v", claims)
	}
	if _, err := ValidateRefreshToken("garbage", "refresh"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage: %v", err)
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	refresh, _ := GenerateRefreshToken(3, "sess", "shared", 7)
	if _, err := ValidateAccessToken(refresh, "shared"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("refresh as access: %v", err)
	}
	access, _ := GenerateAccessToken(3, "a@b.c", "AGENT", "shared", 15)
	if _, err := ValidateRefreshToken(access, "shared"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("access as refresh: %v", err)
	}
}

func TestForeignIssuerIsRejected(t *testing.T) {
	claims := &Claims{UserID: 1, Role: "ADMIN", Type: TypeAccess, RegisteredClaims: registered(1, time.Minute)}
	claims.Issuer = "someone-else"
	token, err := sign(claims, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ValidateAccessToken(token, "secret"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("foreign issuer: %v", err)
	}
}
