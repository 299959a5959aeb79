// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

// Package mailer dispatches the workflow's transactional emails. Delivery is
// best-effort from the workflow's point of view: callers log failures and
// carry on, they never roll back state because an email did not go out.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learn2grow/server/internal/config"
	"github.com/learn2grow/server/internal/i18n"
)

// Kind identifies a transactional email template.
type Kind string

const (
	KindVerification        Kind = "verification"
	KindAlreadyRegistered   Kind = "already_registered"
	KindRegistrationPending Kind = "registration_pending"
	KindApproval            Kind = "approval"
	KindRejection           Kind = "rejection"
	KindAdminNotification   Kind = "admin_notification"
	KindPasswordReset       Kind = "password_reset"
)

// Sender dispatches one email of the given kind. Implementations must not
// panic; a non-nil error means the message was not delivered.
type Sender interface {
	Send(ctx context.Context, kind Kind, to string, data map[string]any) error
}

// New builds the configured sender: a logging sender in dev mode, SMTP
// otherwise.
func New(cfg *config.SMTPConfig) (Sender, error) {
	if cfg.DevMode {
		return &LogSender{}, nil
	}
	return NewSMTPSender(cfg)
}

// compose renders subject and body for a kind from the i18n bundle.
func compose(ctx context.Context, kind Kind, data map[string]any) (subject, body string) {
	subject = i18n.T(ctx, fmt.Sprintf("email_%s_subject", kind))
	body = i18n.TData(ctx, fmt.Sprintf("email_%s_body", kind), data)
	return subject, body
}

// LogSender writes emails to the log instead of dispatching them. Used in
// development so registration flows work without an SMTP server.
type LogSender struct{}

func (s *LogSender) Send(ctx context.Context, kind Kind, to string, data map[string]any) error {
	subject, body := compose(ctx, kind, data)
	slog.Info("email_logged",
		"kind", string(kind),
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}
