package dto

// ProfileFields are the personal details collected by registration forms.
type ProfileFields struct {
	FirstName  string `json:"firstName" validate:"required,max=80"`
	MiddleName string `json:"middleName" validate:"max=80"`
	LastName   string `json:"lastName" validate:"required,max=80"`
	Suffix     string `json:"suffix" validate:"max=10"`
	Age        int    `json:"age" validate:"omitempty,min=0,max=130"`
	Birthdate  string `json:"birthdate" validate:"omitempty,datetime=2006-01-02"`
	Gender     string `json:"gender"`
	Contact    string `json:"contact" validate:"required,contact13"`
	Address    string `json:"address" validate:"required"`
	PhotoRef   string `json:"photoRef,omitempty"`
	ValidIDRef string `json:"validIdRef,omitempty"`
}

// ResidentRegistrationRequest is a self-service or staff-entered resident signup.
type ResidentRegistrationRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=40"`
	Email           string `json:"email" validate:"required,contains=@"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	ProfileFields
}

// UpdateRequestPayload proposes profile changes for an existing resident.
type UpdateRequestPayload struct {
	Username string            `json:"username" validate:"required"`
	Changes  map[string]string `json:"changes" validate:"required,min=1"`
	Proofs   []string          `json:"proofs,omitempty"`
}

// RejectRequest carries the rejection reason and confirmation.
type RejectRequest struct {
	Reason  string `json:"reason"`
	Confirm bool   `json:"confirm"`
}

// RegistrationQuery binds GET /registrations.
type RegistrationQuery struct {
	Kind string `form:"kind"`
}
