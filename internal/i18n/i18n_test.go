// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"github.com/learn2grow/server/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestMain(m *testing.M) {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func TestT_DefaultsToEnglish(t *testing.T) {
	got := i18n.T(context.Background(), "email_verification_subject")

	assert.Equal(t, "Verify your email address", got)
}

func TestT_UnknownIDFallsBackToID(t *testing.T) {
	got := i18n.T(context.Background(), "does_not_exist")

	assert.Equal(t, "does_not_exist", got)
}

func TestWithLocale_German(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.German)

	got := i18n.T(ctx, "email_verification_subject")

	assert.Equal(t, "Bestätige deine E-Mail-Adresse", got)
	assert.Equal(t, "de", i18n.GetLocale(ctx))
}

func TestTData(t *testing.T) {
	got := i18n.TData(context.Background(), "email_admin_notification_body", map[string]any{
		"Name":  "Ana",
		"Email": "ana@example.com",
	})

	require.Contains(t, got, "Ana")
	assert.Contains(t, got, "ana@example.com")
}

func TestGetLocale_Default(t *testing.T) {
	assert.Equal(t, "en", i18n.GetLocale(context.Background()))
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		expected       language.Tag
		acceptLanguage string
	}{
		{language.German, "de"},
		{language.German, "de-DE,de;q=0.9"},
		{language.German, "de-AT"},
		{language.English, "en-US"},
		{language.English, "fr-FR,fr;q=0.9"}, // fallback to English
		{language.English, ""},               // empty defaults to English
	}

	for _, tt := range tests {
		t.Run(tt.acceptLanguage, func(t *testing.T) {
			tag := i18n.MatchLanguage(tt.acceptLanguage)
			// Compare base language (ignore region)
			assert.Equal(t, tt.expected.String()[:2], tag.String()[:2])
		})
	}
}
