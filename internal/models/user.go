// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"time"
)

// User roles. The role is fixed at creation time: recipient accounts only
// come out of an approved RecipientRequest, admin accounts only out of the
// bootstrap config.
const (
	RoleSponsor   = "sponsor"
	RoleRecipient = "recipient"
	RoleAdmin     = "admin"
)

type User struct { //nolint:govet // fieldalignment not critical for models
	ID                  int64          `db:"id" json:"id"`
	Name                string         `db:"name" json:"name"`
	Email               string         `db:"email" json:"email"`
	PasswordHash        string         `db:"password_hash" json:"-"`
	Role                string         `db:"role" json:"role"`
	ProfileNeeds        string         `db:"profile_needs" json:"profile_needs"`
	ProfileVerified     int64          `db:"profile_verified" json:"profile_verified"`
	ProfileAvatarURL    string         `db:"profile_avatar_url" json:"profile_avatar_url"`
	ResetToken          sql.NullString `db:"reset_token" json:"-"`
	ResetTokenExpiresAt sql.NullTime   `db:"reset_token_expires_at" json:"-"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
