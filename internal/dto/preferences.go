package dto

// PreferencesRequest updates the caller's settings. Empty fields keep their value.
type PreferencesRequest struct {
	DefaultLanding *string `json:"defaultLanding,omitempty"`
	Language       *string `json:"language,omitempty" validate:"omitempty,oneof=en fil"`
	TimeFormat     *string `json:"timeFormat,omitempty" validate:"omitempty,oneof=12h 24h"`
	DateFormat     *string `json:"dateFormat,omitempty" validate:"omitempty,oneof=YYYY-MM-DD MM/DD/YYYY DD/MM/YYYY"`
	Timezone       *string `json:"timezone,omitempty"`
	Theme          *string `json:"theme,omitempty" validate:"omitempty,oneof=light dark"`
}
