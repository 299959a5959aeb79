// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/learn2grow/server/internal/models"
)

// CreateRecipientRequest creates a new recipient request.
func (r *Repository) CreateRecipientRequest(ctx context.Context, req *models.RecipientRequest) error {
	req.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recipient_requests (name, email, password_hash, status, email_verified, verification_token, verification_token_expires_at, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Name, req.Email, req.PasswordHash, req.Status, req.EmailVerified,
		req.VerificationToken, req.VerificationTokenExpiresAt, req.Notes, req.CreatedAt)
	if err != nil {
		return err
	}

	req.ID, err = res.LastInsertId()
	return err
}

// GetRecipientRequestByID retrieves a recipient request by ID.
func (r *Repository) GetRecipientRequestByID(ctx context.Context, id int64) (*models.RecipientRequest, error) {
	var req models.RecipientRequest
	err := r.db.GetContext(ctx, &req, `SELECT * FROM recipient_requests WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &req, nil
}

// GetRecipientRequestByEmail retrieves a recipient request by email.
func (r *Repository) GetRecipientRequestByEmail(ctx context.Context, email string) (*models.RecipientRequest, error) {
	var req models.RecipientRequest
	err := r.db.GetContext(ctx, &req, `SELECT * FROM recipient_requests WHERE email = ?`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &req, nil
}

// GetRecipientRequestByVerificationToken retrieves the request holding the
// given unexpired verification token. A consumed or superseded token no
// longer matches any row.
func (r *Repository) GetRecipientRequestByVerificationToken(ctx context.Context, token string, now time.Time) (*models.RecipientRequest, error) {
	var req models.RecipientRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT * FROM recipient_requests WHERE verification_token = ? AND verification_token_expires_at > ?`,
		token, now)
	if err != nil {
		return nil, wrapError(err)
	}
	return &req, nil
}

// ListVerifiedRecipientRequests returns requests whose email is verified,
// newest first. Unverified requests stay invisible to reviewers.
func (r *Repository) ListVerifiedRecipientRequests(ctx context.Context) ([]models.RecipientRequest, error) {
	var reqs []models.RecipientRequest
	err := r.db.SelectContext(ctx, &reqs,
		`SELECT * FROM recipient_requests WHERE email_verified = 1 ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// MarkRecipientRequestVerified flips the verified flag, sets the status and
// clears the single-use verification token.
func (r *Repository) MarkRecipientRequestVerified(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE recipient_requests
		 SET email_verified = 1, status = ?, verification_token = NULL, verification_token_expires_at = NULL
		 WHERE id = ?`,
		status, id)
	return err
}

// DecideRecipientRequest records an admin decision. The status predicate
// makes the update a no-op when the request was already decided, so a
// concurrent verify/decide race loses cleanly instead of overwriting.
// Returns false when no pending row matched.
func (r *Repository) DecideRecipientRequest(ctx context.Context, id int64, status, notes string, reviewedBy int64, reviewedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recipient_requests
		 SET status = ?, notes = ?, reviewed_by = ?, reviewed_at = ?
		 WHERE id = ? AND status = ?`,
		status, notes, reviewedBy, reviewedAt, id, models.StatusPending)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkEmailSent records that a notification of the given kind went out for a
// request. Advisory only: a crash between send and flag-set causes a
// duplicate on retry, which is acceptable here.
func (r *Repository) MarkEmailSent(ctx context.Context, id int64, column string) error {
	switch column {
	case "sent_verification", "sent_approval", "sent_rejection", "sent_admin_notification":
	default:
		return fmt.Errorf("unknown email flag column %q", column)
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE recipient_requests SET `+column+` = 1 WHERE id = ?`, id)
	return err
}
