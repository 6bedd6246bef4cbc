package dto

// StaffRegistrationRequest creates a staff or responder account.
type StaffRegistrationRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=40"`
	Email           string `json:"email" validate:"required,contains=@"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	Role            string `json:"role" validate:"required,oneof=barangay_staff responder"`
	ResponderType   string `json:"responderType"`
	ProfileFields
}

// ResidentUpdateRequest edits a resident directly.
type ResidentUpdateRequest struct {
	Email   *string `json:"email,omitempty" validate:"omitempty,contains=@"`
	Status  *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
	Notes   *string `json:"notes,omitempty"`
	Contact *string `json:"contact,omitempty" validate:"omitempty,contact13"`
	Address *string `json:"address,omitempty"`
	Version int64   `json:"version,omitempty"`
}

// ResidentQuery binds GET /residents.
type ResidentQuery struct {
	Search   string `form:"q"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// ResetPasswordRequest sets a new resident password after confirmation.
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
	Confirm     bool   `json:"confirm"`
}
