// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/learn2grow/server/internal/database"
	"github.com/learn2grow/server/internal/mailer"
	"github.com/learn2grow/server/internal/models"
	"github.com/learn2grow/server/internal/repository"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a test user with the given role. The password is
// always "correct-horse".
func NewTestUser(t *testing.T, repo *repository.Repository, name, email, role string) *models.User {
	t.Helper()
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, repo.CreateUser(ctx, user))
	return user
}

// SentMail is one recorded send.
type SentMail struct {
	Kind mailer.Kind
	To   string
	Data map[string]any
}

// FakeMailer records sends instead of delivering. Kinds listed in Fail
// report a dispatch failure.
type FakeMailer struct {
	mu   sync.Mutex
	Mail []SentMail
	Fail map[mailer.Kind]bool
}

func (m *FakeMailer) Send(_ context.Context, kind mailer.Kind, to string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail[kind] {
		return fmt.Errorf("simulated dispatch failure for %s", kind)
	}
	m.Mail = append(m.Mail, SentMail{Kind: kind, To: to, Data: data})
	return nil
}

// Count returns how many mails of the given kind were recorded.
func (m *FakeMailer) Count(kind mailer.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.Mail {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent recorded mail, or nil.
func (m *FakeMailer) Last() *SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Mail) == 0 {
		return nil
	}
	s := m.Mail[len(m.Mail)-1]
	return &s
}
