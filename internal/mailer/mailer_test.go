// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package mailer

import (
	"context"
	"testing"

	"github.com/learn2grow/server/internal/config"
	"github.com/learn2grow/server/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func TestCompose(t *testing.T) {
	subject, body := compose(context.Background(), KindVerification, map[string]any{
		"Name":      "Ana",
		"VerifyURL": "http://localhost:8080/api/users/verify-email?token=abc",
	})

	assert.Equal(t, "Verify your email address", subject)
	assert.Contains(t, body, "Ana")
	assert.Contains(t, body, "http://localhost:8080/api/users/verify-email?token=abc")
}

func TestCompose_RejectionCarriesNotes(t *testing.T) {
	_, body := compose(context.Background(), KindRejection, map[string]any{
		"Name":  "Ana",
		"Notes": "incomplete documents",
	})

	assert.Contains(t, body, "incomplete documents")
}

func TestNew_DevMode(t *testing.T) {
	sender, err := New(&config.SMTPConfig{DevMode: true})

	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)
}

func TestNew_SMTP(t *testing.T) {
	sender, err := New(&config.SMTPConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "noreply@learn2grow.org",
	})

	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, sender)
}

func TestNewSMTPSender_RequiresHostAndFrom(t *testing.T) {
	_, err := NewSMTPSender(&config.SMTPConfig{From: "noreply@learn2grow.org"})
	assert.Error(t, err)

	_, err = NewSMTPSender(&config.SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)
}

func TestLogSender_Send(t *testing.T) {
	sender := &LogSender{}

	err := sender.Send(context.Background(), KindApproval, "ana@example.com", map[string]any{
		"Name":     "Ana",
		"LoginURL": "http://localhost:8080/login.html",
	})

	assert.NoError(t, err)
}
