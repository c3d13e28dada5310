// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims() Claims {
	now := time.Now()
	return Claims{
		Email: "ada@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(&config.AuthConfig{}); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("err = %v", err)
	}
}

func TestValidateToken(t *testing.T) {
	v, err := NewVerifier(&config.AuthConfig{JWTSecret: testSecret, JWTAudience: "authenticated"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		token   func() string
		wantSub string
	}{
		{"valid", func() string { return sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()) }, "u1"},
		{"wrong secret", func() string {
			return sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), validClaims())
		}, ""},
		{"expired", func() string {
			c := validClaims()
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}, ""},
		{"no expiry", func() string {
			c := validClaims()
			c.ExpiresAt = nil
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}, ""},
		{"wrong audience", func() string {
			c := validClaims()
			c.Audience = jwt.ClaimStrings{"anon"}
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}, ""},
		{"no subject", func() string {
			c := validClaims()
			c.Subject = ""
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}, ""},
		{"other algorithm", func() string {
			return sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())
		}, ""},
		{"garbage", func() string { return "not.a.token" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := v.UserID(tt.token())
			if tt.wantSub == "" {
				if err == nil {
					t.Errorf("accepted, subject %q", sub)
				}
				return
			}
			if err != nil || sub != tt.wantSub {
				t.Errorf("UserID = %q, %v; want %q", sub, err, tt.wantSub)
			}
		})
	}
}

func TestValidateTokenClaims(t *testing.T) {
	v, err := NewVerifier(&config.AuthConfig{JWTSecret: testSecret})
	if err != nil {
		t.Fatal(err)
	}
	c := validClaims()
	c.Audience = nil // no audience configured, none required
	claims, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
	if err != nil {
		t.Fatal(err)
	}
	if claims.Email != "ada@example.com" || claims.Role != "authenticated" {
		t.Errorf("claims = %+v", claims)
	}
}
