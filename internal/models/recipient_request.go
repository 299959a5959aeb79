// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"time"
)

// RecipientRequest statuses. A request only ever moves pending→approved or
// pending→rejected; approved and rejected are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// RecipientRequest is a pending application for a recipient account. It is
// kept after the decision as an audit trail and is never deleted by the
// registration workflow.
type RecipientRequest struct { //nolint:govet // fieldalignment not critical for models
	ID                         int64          `db:"id" json:"id"`
	Name                       string         `db:"name" json:"name"`
	Email                      string         `db:"email" json:"email"`
	PasswordHash               string         `db:"password_hash" json:"-"`
	Status                     string         `db:"status" json:"status"`
	EmailVerified              int64          `db:"email_verified" json:"email_verified"`
	VerificationToken          sql.NullString `db:"verification_token" json:"-"`
	VerificationTokenExpiresAt sql.NullTime   `db:"verification_token_expires_at" json:"-"`
	Notes                      string         `db:"notes" json:"notes"`
	ReviewedBy                 sql.NullInt64  `db:"reviewed_by" json:"reviewed_by"`
	ReviewedAt                 sql.NullTime   `db:"reviewed_at" json:"reviewed_at"`
	SentVerification           int64          `db:"sent_verification" json:"-"`
	SentApproval               int64          `db:"sent_approval" json:"-"`
	SentRejection              int64          `db:"sent_rejection" json:"-"`
	SentAdminNotification      int64          `db:"sent_admin_notification" json:"-"`
	CreatedAt                  time.Time      `db:"created_at" json:"created_at"`
}

// IsEmailVerified reports whether the applicant proved control of the email.
func (r *RecipientRequest) IsEmailVerified() bool {
	return r.EmailVerified != 0
}

// IsPending reports whether the request still awaits a decision.
func (r *RecipientRequest) IsPending() bool {
	return r.Status == StatusPending
}
