// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

// Package token issues and verifies the signed, time-limited tokens used for
// email verification links, password reset links and API access.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalid is returned for any token that fails verification: bad
// signature, expired, malformed, or issued for a different purpose.
var ErrInvalid = errors.New("token invalid")

// Purpose scopes a token to one use. A password reset token can never pass
// as an email verification token and vice versa.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeAccess            Purpose = "access"
)

// Claims is the decoded payload of a verified token.
type Claims struct {
	Subject   string
	Purpose   Purpose
	Role      string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Purpose string `json:"purpose"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issuer creates and verifies HS256-signed tokens. The clock is injected so
// expiry behavior is testable.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an Issuer with the given signing secret. A nil now
// function defaults to time.Now.
func NewIssuer(secret string, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), now: now}
}

// Issue creates a signed token for the subject, scoped to purpose and
// expiring after ttl. The role is only carried on access tokens.
func (i *Issuer) Issue(purpose Purpose, subject, role string, ttl time.Duration) (string, error) {
	now := i.now()

	claims := tokenClaims{
		Purpose: string(purpose),
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose and returns the decoded
// claims. Every failure mode collapses into ErrInvalid so callers cannot
// leak why a token was refused.
func (i *Issuer) Verify(tokenString string, purpose Purpose) (*Claims, error) {
	var claims tokenClaims

	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if claims.Purpose != string(purpose) {
		return nil, fmt.Errorf("%w: purpose mismatch", ErrInvalid)
	}

	return &Claims{
		Subject:   claims.Subject,
		Purpose:   Purpose(claims.Purpose),
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
