// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
)

var (
	ErrMissingSecret  = errors.New("auth: JWT secret is required")
	ErrMissingSubject = errors.New("auth: token has no subject")
)

// Claims are the access token claims issued by the hosted store's auth
// service. The subject is the user ID that owns the creator row.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates access tokens signed with the store's shared secret.
type Verifier struct {
	secret   []byte
	audience string
}

// NewVerifier creates a Verifier from the auth config section.
func NewVerifier(cfg *config.AuthConfig) (*Verifier, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(cfg.JWTSecret), audience: cfg.JWTAudience}, nil
}

// ValidateToken checks signature, expiry and audience and returns the
// claims. Only HS256 is accepted.
func (v *Verifier) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// UserID returns the token's subject.
func (v *Verifier) UserID(tokenString string) (string, error) {
	claims, err := v.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
