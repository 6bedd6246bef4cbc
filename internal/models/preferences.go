package models

import "time"

// Preferences are per-user dashboard settings.
type Preferences struct {
	UserID         string    `db:"user_id" json:"user_id"`
	DefaultLanding string    `db:"default_landing" json:"default_landing"`
	Language       string    `db:"language" json:"language"`
	TimeFormat     string    `db:"time_format" json:"time_format"`
	DateFormat     string    `db:"date_format" json:"date_format"`
	Timezone       string    `db:"timezone" json:"timezone"`
	Theme          string    `db:"theme" json:"theme"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPreferences returns the settings used before a user saves any.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:     userID,
		Language:   "en",
		TimeFormat: "12h",
		DateFormat: "YYYY-MM-DD",
		Timezone:   "Asia/Manila",
		Theme:      "light",
	}
}
