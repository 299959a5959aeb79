// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

// Package registration implements the recipient-registration workflow:
// application submission, email verification, admin decision and the
// surrounding account operations (sponsor signup, login, password reset).
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/learn2grow/server/internal/mailer"
	"github.com/learn2grow/server/internal/models"
	"github.com/learn2grow/server/internal/repository"
	"github.com/learn2grow/server/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Options configures a Workflow. Zero TTLs fall back to the documented
// defaults; a nil Now falls back to time.Now.
type Options struct {
	BaseURL         string        // public site URL for links in emails
	AdminEmail      string        // inbox notified about verified applicants
	VerificationTTL time.Duration // default 24h
	ResetTTL        time.Duration // default 1h
	AccessTTL       time.Duration // default 12h
	Now             func() time.Time
}

// Workflow orchestrates the registration state machine. All collaborators
// are injected at construction; the workflow holds no other state.
type Workflow struct {
	repo            *repository.Repository
	mail            mailer.Sender
	tokens          *token.Issuer
	baseURL         string
	adminEmail      string
	verificationTTL time.Duration
	resetTTL        time.Duration
	accessTTL       time.Duration
	now             func() time.Time
}

// New creates a Workflow with the given collaborators.
func New(repo *repository.Repository, sender mailer.Sender, issuer *token.Issuer, opts Options) *Workflow {
	if opts.VerificationTTL == 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	if opts.ResetTTL == 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 12 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	// SQLite compares stored timestamps as text, so everything persisted or
	// compared must be in one offset.
	clock := opts.Now
	now := func() time.Time { return clock().UTC() }

	return &Workflow{
		repo:            repo,
		mail:            sender,
		tokens:          issuer,
		baseURL:         strings.TrimSuffix(opts.BaseURL, "/"),
		adminEmail:      opts.AdminEmail,
		verificationTTL: opts.VerificationTTL,
		resetTTL:        opts.ResetTTL,
		accessTTL:       opts.AccessTTL,
		now:             now,
	}
}

// SubmitRegistration files a new recipient application and sends the
// verification email. If the email already belongs to a user or a pending
// application, no state is mutated and a self-service hint email goes out
// instead.
func (w *Workflow) SubmitRegistration(ctx context.Context, name, email, password string) (*models.RecipientRequest, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, newError(KindValidation, "name, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, newError(KindValidation, "invalid email address")
	}
	if len(password) < MinPasswordLength {
		return nil, newError(KindValidation, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	exists, err := w.repo.UserExists(ctx, email)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to check existing user", err)
	}
	if exists {
		w.sendMail(ctx, mailer.KindAlreadyRegistered, email, map[string]any{
			"ResetURL": w.baseURL + "/reset-password.html",
		})
		return nil, newError(KindEmailInUse, "email already in use, sign-in help sent")
	}

	prev, err := w.repo.GetRecipientRequestByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, wrapError(KindInternal, "failed to check existing request", err)
	}
	if err == nil {
		if prev.IsPending() {
			w.sendMail(ctx, mailer.KindRegistrationPending, email, nil)
			return nil, newError(KindEmailInUse, "registration already pending, check your inbox")
		}
		return nil, newError(KindEmailInUse, "a previous application for this email was already reviewed")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to hash password", err)
	}

	verifyToken, err := w.tokens.Issue(token.PurposeEmailVerification, email, "", w.verificationTTL)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to issue verification token", err)
	}

	req := &models.RecipientRequest{
		Name:         name,
		Email:        email,
		PasswordHash: string(passwordHash),
		Status:       models.StatusPending,
	}
	req.VerificationToken.String = verifyToken
	req.VerificationToken.Valid = true
	req.VerificationTokenExpiresAt.Time = w.now().Add(w.verificationTTL)
	req.VerificationTokenExpiresAt.Valid = true

	if err := w.repo.CreateRecipientRequest(ctx, req); err != nil {
		// Concurrent submits for the same email are only guarded by the
		// unique index; the second writer lands here.
		if repository.IsUniqueViolation(err) {
			return nil, newError(KindEmailInUse, "registration already pending, check your inbox")
		}
		return nil, wrapError(KindInternal, "failed to create recipient request", err)
	}

	if w.sendMail(ctx, mailer.KindVerification, email, map[string]any{
		"Name":      name,
		"VerifyURL": fmt.Sprintf("%s/api/users/verify-email?token=%s", w.baseURL, verifyToken),
	}) {
		w.markEmailSent(ctx, req.ID, "sent_verification")
	}

	slog.Info("registration_submitted", "request_id", req.ID, "email", email)
	return req, nil
}

// VerifyEmail consumes a verification token: it marks the application
// verified and approved, creates the recipient user account and notifies
// both the applicant and the admin inbox. A replayed, expired or superseded
// token fails without any mutation.
func (w *Workflow) VerifyEmail(ctx context.Context, tokenString string) (*models.RecipientRequest, error) {
	if tokenString == "" {
		return nil, newError(KindValidation, "token is required")
	}

	if _, err := w.tokens.Verify(tokenString, token.PurposeEmailVerification); err != nil {
		return nil, wrapError(KindTokenInvalid, "invalid or expired verification token", err)
	}

	// The stored-token match rejects tokens that verified before (the column
	// is cleared on consumption) and tokens superseded by a later issue.
	req, err := w.repo.GetRecipientRequestByVerificationToken(ctx, tokenString, w.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindTokenInvalid, "invalid or expired verification token")
		}
		return nil, wrapError(KindInternal, "failed to look up verification token", err)
	}

	if err := w.repo.MarkRecipientRequestVerified(ctx, req.ID, models.StatusApproved); err != nil {
		return nil, wrapError(KindInternal, "failed to mark request verified", err)
	}

	if err := w.createRecipientUser(ctx, req); err != nil {
		return nil, err
	}

	if w.adminEmail != "" {
		if w.sendMail(ctx, mailer.KindAdminNotification, w.adminEmail, map[string]any{
			"Name":  req.Name,
			"Email": req.Email,
		}) {
			w.markEmailSent(ctx, req.ID, "sent_admin_notification")
		}
	}
	if w.sendMail(ctx, mailer.KindApproval, req.Email, map[string]any{
		"Name":     req.Name,
		"LoginURL": w.baseURL + "/login.html",
	}) {
		w.markEmailSent(ctx, req.ID, "sent_approval")
	}

	slog.Info("email_verified", "request_id", req.ID, "email", req.Email)

	updated, err := w.repo.GetRecipientRequestByID(ctx, req.ID)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to reload request", err)
	}
	return updated, nil
}

// AdminDecide records an admin decision on a verified pending application.
// Requests that already left the pending state are refused, which also
// closes the double-approval window between this path and VerifyEmail.
func (w *Workflow) AdminDecide(ctx context.Context, reviewerEmail string, requestID int64, decision, notes string) (*models.RecipientRequest, error) {
	if decision != models.StatusApproved && decision != models.StatusRejected {
		return nil, newError(KindValidation, "decision must be approved or rejected")
	}

	reviewer, err := w.repo.GetUserByEmail(ctx, reviewerEmail)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to resolve reviewer", err)
	}
	// The HTTP layer already checks the token's role claim; this guards
	// direct workflow callers and accounts demoted after token issue.
	if !reviewer.IsAdmin() {
		return nil, newError(KindValidation, "reviewer must be an admin")
	}

	req, err := w.repo.GetRecipientRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, "recipient request not found")
		}
		return nil, wrapError(KindInternal, "failed to load request", err)
	}

	if !req.IsEmailVerified() {
		return nil, newError(KindEmailNotVerified, "applicant has not verified their email yet")
	}
	if !req.IsPending() {
		return nil, newError(KindAlreadyDecided, "request was already decided")
	}

	decided, err := w.repo.DecideRecipientRequest(ctx, req.ID, decision, notes, reviewer.ID, w.now())
	if err != nil {
		return nil, wrapError(KindInternal, "failed to record decision", err)
	}
	if !decided {
		return nil, newError(KindAlreadyDecided, "request was already decided")
	}

	switch decision {
	case models.StatusApproved:
		if err := w.createRecipientUser(ctx, req); err != nil {
			return nil, err
		}
		if w.sendMail(ctx, mailer.KindApproval, req.Email, map[string]any{
			"Name":     req.Name,
			"LoginURL": w.baseURL + "/login.html",
		}) {
			w.markEmailSent(ctx, req.ID, "sent_approval")
		}
	case models.StatusRejected:
		if w.sendMail(ctx, mailer.KindRejection, req.Email, map[string]any{
			"Name":  req.Name,
			"Notes": notes,
		}) {
			w.markEmailSent(ctx, req.ID, "sent_rejection")
		}
	}

	slog.Info("request_decided",
		"request_id", req.ID,
		"decision", decision,
		"reviewed_by", reviewer.ID,
	)

	updated, err := w.repo.GetRecipientRequestByID(ctx, req.ID)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to reload request", err)
	}
	return updated, nil
}

// RequestSummary is the reviewer-facing view of an application. Password
// hashes and tokens never leave the workflow.
type RequestSummary struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Status        string     `json:"status"`
	EmailVerified bool       `json:"email_verified"`
	Notes         string     `json:"notes"`
	ReviewedBy    *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ListRequests returns all email-verified applications, newest first.
func (w *Workflow) ListRequests(ctx context.Context) ([]RequestSummary, error) {
	reqs, err := w.repo.ListVerifiedRecipientRequests(ctx)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to list requests", err)
	}

	summaries := make([]RequestSummary, 0, len(reqs))
	for i := range reqs {
		summaries = append(summaries, summarize(&reqs[i]))
	}
	return summaries, nil
}

func summarize(req *models.RecipientRequest) RequestSummary {
	s := RequestSummary{
		ID:            req.ID,
		Name:          req.Name,
		Email:         req.Email,
		Status:        req.Status,
		EmailVerified: req.IsEmailVerified(),
		Notes:         req.Notes,
		CreatedAt:     req.CreatedAt,
	}
	if req.ReviewedBy.Valid {
		s.ReviewedBy = &req.ReviewedBy.Int64
	}
	if req.ReviewedAt.Valid {
		t := req.ReviewedAt.Time
		s.ReviewedAt = &t
	}
	return s
}

// RegisterSponsor creates a sponsor account directly, bypassing the
// request/verification flow.
func (w *Workflow) RegisterSponsor(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, newError(KindValidation, "name, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, newError(KindValidation, "invalid email address")
	}
	if len(password) < MinPasswordLength {
		return nil, newError(KindValidation, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	exists, err := w.repo.UserExists(ctx, email)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to check existing user", err)
	}
	if exists {
		return nil, newError(KindEmailInUse, "email already in use")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to hash password", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         models.RoleSponsor,
	}
	if err := w.repo.CreateUser(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, newError(KindEmailInUse, "email already in use")
		}
		return nil, wrapError(KindInternal, "failed to create user", err)
	}

	slog.Info("sponsor_registered", "user_id", user.ID, "email", email)
	return user, nil
}

// Login authenticates a user and returns a short-lived access token.
func (w *Workflow) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := w.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return "", nil, newError(KindInvalidCredentials, "invalid email or password")
		}
		return "", nil, wrapError(KindInternal, "failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return "", nil, newError(KindInvalidCredentials, "invalid email or password")
	}

	accessToken, err := w.tokens.Issue(token.PurposeAccess, user.Email, user.Role, w.accessTTL)
	if err != nil {
		return "", nil, wrapError(KindInternal, "failed to issue access token", err)
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return accessToken, user, nil
}

// ForgotPassword starts the password reset flow. The result is always
// success so callers cannot probe which emails are registered.
func (w *Workflow) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return newError(KindValidation, "email is required")
	}

	user, err := w.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("password_reset_unknown_email", "email", email)
			return nil
		}
		return wrapError(KindInternal, "failed to load user", err)
	}

	resetToken, err := w.tokens.Issue(token.PurposePasswordReset, user.Email, "", w.resetTTL)
	if err != nil {
		return wrapError(KindInternal, "failed to issue reset token", err)
	}

	if err := w.repo.SetUserResetToken(ctx, user.ID, resetToken, w.now().Add(w.resetTTL)); err != nil {
		return wrapError(KindInternal, "failed to store reset token", err)
	}

	w.sendMail(ctx, mailer.KindPasswordReset, user.Email, map[string]any{
		"ResetURL": fmt.Sprintf("%s/reset-password.html?token=%s", w.baseURL, resetToken),
	})

	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (w *Workflow) ResetPassword(ctx context.Context, tokenString, newPassword string) error {
	if tokenString == "" || newPassword == "" {
		return newError(KindValidation, "token and password are required")
	}
	if len(newPassword) < MinPasswordLength {
		return newError(KindValidation, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	if _, err := w.tokens.Verify(tokenString, token.PurposePasswordReset); err != nil {
		return wrapError(KindTokenInvalid, "invalid or expired reset token", err)
	}

	user, err := w.repo.GetUserByResetToken(ctx, tokenString, w.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindTokenInvalid, "invalid or expired reset token")
		}
		return wrapError(KindInternal, "failed to look up reset token", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return wrapError(KindInternal, "failed to hash password", err)
	}

	if err := w.repo.UpdateUserPassword(ctx, user.ID, string(passwordHash)); err != nil {
		return wrapError(KindInternal, "failed to update password", err)
	}
	if err := w.repo.ClearUserResetToken(ctx, user.ID); err != nil {
		return wrapError(KindInternal, "failed to clear reset token", err)
	}

	slog.Info("password_reset", "user_id", user.ID)
	return nil
}

// EnsureAdmin creates the bootstrap admin account if no admin exists yet.
func (w *Workflow) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	count, err := w.repo.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         models.RoleAdmin,
	}
	if err := w.repo.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("admin_bootstrapped", "user_id", admin.ID, "email", email)
	return nil
}

// createRecipientUser creates the user account for an application. The
// existence check guards the race between auto-approval on verification and
// an explicit admin approval.
func (w *Workflow) createRecipientUser(ctx context.Context, req *models.RecipientRequest) error {
	exists, err := w.repo.UserExists(ctx, req.Email)
	if err != nil {
		return wrapError(KindInternal, "failed to check existing user", err)
	}
	if exists {
		slog.Info("recipient_user_exists", "request_id", req.ID, "email", req.Email)
		return nil
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: req.PasswordHash,
		Role:         models.RoleRecipient,
	}
	if err := w.repo.CreateUser(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return wrapError(KindInternal, "failed to create recipient user", err)
	}

	slog.Info("recipient_user_created", "user_id", user.ID, "request_id", req.ID)
	return nil
}

// sendMail dispatches best-effort and reports whether the send succeeded.
// Failures are logged, never propagated.
func (w *Workflow) sendMail(ctx context.Context, kind mailer.Kind, to string, data map[string]any) bool {
	if err := w.mail.Send(ctx, kind, to, data); err != nil {
		slog.Error("email_send_failed", "kind", string(kind), "to", to, "error", err)
		return false
	}
	return true
}

// markEmailSent updates the advisory sent flag; a failure only logs.
func (w *Workflow) markEmailSent(ctx context.Context, requestID int64, column string) {
	if err := w.repo.MarkEmailSent(ctx, requestID, column); err != nil {
		slog.Error("email_flag_update_failed", "request_id", requestID, "flag", column, "error", err)
	}
}
