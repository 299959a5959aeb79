// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package registration_test

import (
	"context"
	"testing"
	"time"

	"github.com/learn2grow/server/internal/mailer"
	"github.com/learn2grow/server/internal/models"
	"github.com/learn2grow/server/internal/registration"
	"github.com/learn2grow/server/internal/repository"
	"github.com/learn2grow/server/internal/testutil"
	"github.com/learn2grow/server/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "workflow-test-secret"
	testBaseURL = "http://localhost:8080"
	adminInbox  = "review@learn2grow.org"
)

type fixture struct {
	repo *repository.Repository
	mail *testutil.FakeMailer
	wf   *registration.Workflow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	mail := &testutil.FakeMailer{}
	issuer := token.NewIssuer(testSecret, nil)
	wf := registration.New(repo, mail, issuer, registration.Options{
		BaseURL:    testBaseURL,
		AdminEmail: adminInbox,
	})
	return &fixture{repo: repo, mail: mail, wf: wf}
}

// workflowAt builds a second workflow over the same repo and mailbox whose
// clock (and token clock) reads shifted time.
func (f *fixture) workflowAt(now func() time.Time) *registration.Workflow {
	issuer := token.NewIssuer(testSecret, now)
	return registration.New(f.repo, f.mail, issuer, registration.Options{
		BaseURL:    testBaseURL,
		AdminEmail: adminInbox,
		Now:        now,
	})
}

func TestSubmitRegistration_CreatesPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.False(t, req.IsEmailVerified())
	require.True(t, req.VerificationToken.Valid)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), req.VerificationTokenExpiresAt.Time, time.Minute)

	// Verification email went out and the advisory flag was set
	assert.Equal(t, 1, f.mail.Count(mailer.KindVerification))
	stored, err := f.repo.GetRecipientRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.SentVerification)
}

func TestSubmitRegistration_MissingFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.SubmitRegistration(ctx, "", "ana@example.com", "Passw0rd1")
	assert.Equal(t, registration.KindValidation, registration.KindOf(err))

	_, err = f.wf.SubmitRegistration(ctx, "Ana", "", "Passw0rd1")
	assert.Equal(t, registration.KindValidation, registration.KindOf(err))

	_, err = f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "")
	assert.Equal(t, registration.KindValidation, registration.KindOf(err))

	assert.Empty(t, f.mail.Mail)
}

func TestSubmitRegistration_ExistingUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.NewTestUser(t, f.repo, "Ana", "ana@example.com", models.RoleSponsor)

	_, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")

	assert.Equal(t, registration.KindEmailInUse, registration.KindOf(err))

	// No request was created, only the self-service hint email went out
	_, err = f.repo.GetRecipientRequestByEmail(ctx, "ana@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 1, f.mail.Count(mailer.KindAlreadyRegistered))
	assert.Equal(t, 0, f.mail.Count(mailer.KindVerification))
}

func TestSubmitRegistration_PendingRequestExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")
	require.NoError(t, err)

	_, err = f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")

	assert.Equal(t, registration.KindEmailInUse, registration.KindOf(err))
	assert.Equal(t, 1, f.mail.Count(mailer.KindRegistrationPending))
	assert.Equal(t, 1, f.mail.Count(mailer.KindVerification))
}

func TestVerifyEmail_ApprovesAndCreatesUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")
	require.NoError(t, err)

	verified, err := f.wf.VerifyEmail(ctx, req.VerificationToken.String)

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, verified.Status)
	assert.True(t, verified.IsEmailVerified())
	assert.False(t, verified.VerificationToken.Valid)

	user, err := f.repo.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleRecipient, user.Role)
	assert.Equal(t, "Ana", user.Name)

	assert.Equal(t, 1, f.mail.Count(mailer.KindApproval))
	assert.Equal(t, 1, f.mail.Count(mailer.KindAdminNotification))
}

func TestVerifyEmail_Replay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")
	require.NoError(t, err)

	_, err = f.wf.VerifyEmail(ctx, req.VerificationToken.String)
	require.NoError(t, err)

	// The token was cleared on consumption; replay must fail
	_, err = f.wf.VerifyEmail(ctx, req.VerificationToken.String)

	assert.Equal(t, registration.KindTokenInvalid, registration.KindOf(err))
	assert.Equal(t, 1, f.mail.Count(mailer.KindApproval))
}

func TestVerifyEmail_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")
	require.NoError(t, err)

	future := time.Now().Add(25 * time.Hour)
	late := f.workflowAt(func() time.Time { return future })

	_, err = late.VerifyEmail(ctx, req.VerificationToken.String)

	assert.Equal(t, registration.KindTokenInvalid, registration.KindOf(err))

	// No mutation happened
	stored, err := f.repo.GetRecipientRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.False(t, stored.IsEmailVerified())
	assert.True(t, stored.VerificationToken.Valid)
}

func TestVerifyEmail_Garbage(t *testing.T) {
	f := newFixture(t)

	_, err := f.wf.VerifyEmail(context.Background(), "garbage")

	assert.Equal(t, registration.KindTokenInvalid, registration.KindOf(err))
}

func TestVerifyEmail_MailFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mail.Fail = map[mailer.Kind]bool{mailer.KindApproval: true}

	req, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")
	require.NoError(t, err)

	verified, err := f.wf.VerifyEmail(ctx, req.VerificationToken.String)

	// The state transition is authoritative; email delivery is best-effort
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, verified.Status)
	assert.EqualValues(t, 0, verified.SentApproval)
	assert.EqualValues(t, 1, verified.SentAdminNotification)
}

// verifiedPendingRequest seeds the state the admin dashboard acts on:
// email verified but not yet decided.
func verifiedPendingRequest(t *testing.T, f *fixture, email string) *models.RecipientRequest {
	t.Helper()
	ctx := context.Background()
	req := &models.RecipientRequest{
		Name:          "Ana",
		Email:         email,
		PasswordHash:  "stored-hash",
		Status:        models.StatusPending,
		EmailVerified: 1,
	}
	require.NoError(t, f.repo.CreateRecipientRequest(ctx, req))
	return req
}

func TestAdminDecide_Unverified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.NewTestUser(t, f.repo, "Root", "admin@example.com", models.RoleAdmin)
	req, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")
	require.NoError(t, err)

	for _, decision := range []string{models.StatusApproved, models.StatusRejected} {
		_, err = f.wf.AdminDecide(ctx, "admin@example.com", req.ID, decision, "")
		assert.Equal(t, registration.KindEmailNotVerified, registration.KindOf(err))
	}
}

func TestAdminDecide_Approve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	callTime := time.Now().UTC()

	testutil.NewTestUser(t, f.repo, "Root", "admin@example.com", models.RoleAdmin)
	req := verifiedPendingRequest(t, f, "ana@example.com")

	decided, err := f.wf.AdminDecide(ctx, "admin@example.com", req.ID, models.StatusApproved, "looks good")

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, decided.Status)
	assert.Equal(t, "looks good", decided.Notes)
	require.True(t, decided.ReviewedAt.Valid)
	assert.False(t, decided.ReviewedAt.Time.Before(callTime.Truncate(time.Second)))

	user, err := f.repo.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleRecipient, user.Role)
	assert.Equal(t, "stored-hash", user.PasswordHash)

	assert.Equal(t, 1, f.mail.Count(mailer.KindApproval))
}

func TestAdminDecide_RejectCreatesNoUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.NewTestUser(t, f.repo, "Root", "admin@example.com", models.RoleAdmin)
	req := verifiedPendingRequest(t, f, "ana@example.com")

	decided, err := f.wf.AdminDecide(ctx, "admin@example.com", req.ID, models.StatusRejected, "incomplete docs")

	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, decided.Status)

	_, err = f.repo.GetUserByEmail(ctx, "ana@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Equal(t, 1, f.mail.Count(mailer.KindRejection))
	last := f.mail.Last()
	assert.Equal(t, "incomplete docs", last.Data["Notes"])
}

func TestAdminDecide_AlreadyDecided(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.NewTestUser(t, f.repo, "Root", "admin@example.com", models.RoleAdmin)
	req := verifiedPendingRequest(t, f, "ana@example.com")

	_, err := f.wf.AdminDecide(ctx, "admin@example.com", req.ID, models.StatusApproved, "")
	require.NoError(t, err)

	_, err = f.wf.AdminDecide(ctx, "admin@example.com", req.ID, models.StatusRejected, "changed my mind")

	assert.Equal(t, registration.KindAlreadyDecided, registration.KindOf(err))
}

func TestAdminDecide_RejectsNonAdminReviewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.NewTestUser(t, f.repo, "Sam", "sam@example.com", models.RoleSponsor)
	req := verifiedPendingRequest(t, f, "ana@example.com")

	_, err := f.wf.AdminDecide(ctx, "sam@example.com", req.ID, models.StatusApproved, "")

	assert.Equal(t, registration.KindValidation, registration.KindOf(err))

	stored, err := f.repo.GetRecipientRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestAdminDecide_NotFound(t *testing.T) {
	f := newFixture(t)

	testutil.NewTestUser(t, f.repo, "Root", "admin@example.com", models.RoleAdmin)

	_, err := f.wf.AdminDecide(context.Background(), "admin@example.com", 9999, models.StatusApproved, "")

	assert.Equal(t, registration.KindNotFound, registration.KindOf(err))
}

func TestAdminDecide_InvalidDecision(t *testing.T) {
	f := newFixture(t)

	testutil.NewTestUser(t, f.repo, "Root", "admin@example.com", models.RoleAdmin)

	_, err := f.wf.AdminDecide(context.Background(), "admin@example.com", 1, "maybe", "")

	assert.Equal(t, registration.KindValidation, registration.KindOf(err))
}

// The end-to-end flow: submit, verify (auto-approval creates the account),
// then a late admin decision bounces off the terminal state.
func TestRegistrationScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.NewTestUser(t, f.repo, "Root", "admin@example.com", models.RoleAdmin)

	req, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.False(t, req.IsEmailVerified())

	verified, err := f.wf.VerifyEmail(ctx, req.VerificationToken.String)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, verified.Status)
	assert.True(t, verified.IsEmailVerified())
	assert.False(t, verified.VerificationToken.Valid)

	user, err := f.repo.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleRecipient, user.Role)

	_, err = f.wf.AdminDecide(ctx, "admin@example.com", req.ID, models.StatusRejected, "test")
	assert.Equal(t, registration.KindAlreadyDecided, registration.KindOf(err))

	// The terminal state survived the rejected decision attempt
	final, err := f.repo.GetRecipientRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, final.Status)
}

func TestListRequests_ExcludesUnverifiedAndSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")
	require.NoError(t, err)
	verifiedPendingRequest(t, f, "bob@example.com")

	summaries, err := f.wf.ListRequests(ctx)

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "bob@example.com", summaries[0].Email)
	assert.True(t, summaries[0].EmailVerified)
}

func TestRegisterSponsor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.wf.RegisterSponsor(ctx, "Sam", "sam@example.com", "Passw0rd1")

	require.NoError(t, err)
	assert.Equal(t, models.RoleSponsor, user.Role)

	_, err = f.wf.RegisterSponsor(ctx, "Sam", "sam@example.com", "Passw0rd1")
	assert.Equal(t, registration.KindEmailInUse, registration.KindOf(err))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.NewTestUser(t, f.repo, "Sam", "sam@example.com", models.RoleSponsor)

	accessToken, user, err := f.wf.Login(ctx, "sam@example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.Equal(t, "sam@example.com", user.Email)

	_, _, err = f.wf.Login(ctx, "sam@example.com", "wrong")
	assert.Equal(t, registration.KindInvalidCredentials, registration.KindOf(err))

	_, _, err = f.wf.Login(ctx, "nobody@example.com", "whatever")
	assert.Equal(t, registration.KindInvalidCredentials, registration.KindOf(err))
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, f.repo, "Sam", "sam@example.com", models.RoleSponsor)

	require.NoError(t, f.wf.ForgotPassword(ctx, "sam@example.com"))
	assert.Equal(t, 1, f.mail.Count(mailer.KindPasswordReset))

	stored, err := f.repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, stored.ResetToken.Valid)

	require.NoError(t, f.wf.ResetPassword(ctx, stored.ResetToken.String, "new-Passw0rd"))

	// New password works, token is single-use
	_, _, err = f.wf.Login(ctx, "sam@example.com", "new-Passw0rd")
	require.NoError(t, err)

	err = f.wf.ResetPassword(ctx, stored.ResetToken.String, "another-Passw0rd")
	assert.Equal(t, registration.KindTokenInvalid, registration.KindOf(err))
}

func TestForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	err := f.wf.ForgotPassword(context.Background(), "nobody@example.com")

	require.NoError(t, err)
	assert.Empty(t, f.mail.Mail)
}

func TestResetPassword_RejectsVerificationToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A verification token must never pass as a reset token
	req, err := f.wf.SubmitRegistration(ctx, "Ana", "ana@example.com", "Passw0rd1")
	require.NoError(t, err)

	err = f.wf.ResetPassword(ctx, req.VerificationToken.String, "new-Passw0rd")

	assert.Equal(t, registration.KindTokenInvalid, registration.KindOf(err))
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.wf.EnsureAdmin(ctx, "admin@example.com", "super-secret-pass"))

	user, err := f.repo.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	// Idempotent: a second call changes nothing
	require.NoError(t, f.wf.EnsureAdmin(ctx, "other@example.com", "super-secret-pass"))
	_, err = f.repo.GetUserByEmail(ctx, "other@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
