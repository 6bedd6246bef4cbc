package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTier distinguishes credentialed sessions from the guest viewer.
type SessionTier string

const (
	TierFull  SessionTier = "full"
	TierGuest SessionTier = "guest"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token and the session it opens.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	Session     Session   `json:"session"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// MenuEntry is a navigation item visible to the session.
type MenuEntry struct {
	Label string `json:"label"`
	Page  string `json:"page"`
}

// Session is the authenticated identity handed to handlers and services.
type Session struct {
	UserID      string      `json:"user_id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	Role        string      `json:"role"`
	Tier        SessionTier `json:"tier"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Destination string      `json:"destination"`
	Menu        []MenuEntry `json:"menu"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID      string      `json:"user_id"`
	Username    string      `json:"username"`
	Role        string      `json:"role"`
	Tier        SessionTier `json:"tier"`
	DisplayName string      `json:"display_name"`
	jwt.RegisteredClaims
}

// Actor is the name recorded in history and attribution.
func (c *JWTClaims) Actor() string {
	if c == nil {
		return "System"
	}
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Username
}
