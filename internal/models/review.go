package models

import "time"

// ReviewKind distinguishes profile updates from new registrations.
type ReviewKind string

const (
	ReviewUpdate       ReviewKind = "update"
	ReviewRegistration ReviewKind = "registration"
)

// ReviewStatus is the outcome of a review request.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Document keys carried by registration requests.
const (
	DocumentPhoto   = "photo"
	DocumentValidID = "validId"
)

// DefaultRejectReason is recorded when a reviewer gives none.
const DefaultRejectReason = "Registration did not meet requirements."

// ReviewRequest is a self-service change or registration awaiting staff review.
type ReviewRequest struct {
	ID           string            `db:"id" json:"id"`
	Kind         ReviewKind        `db:"kind" json:"kind"`
	Identity     string            `db:"identity" json:"identity"`
	Email        string            `db:"email" json:"email"`
	Changes      map[string]string `db:"-" json:"changes"`
	Proofs       []string          `db:"-" json:"proofs,omitempty"`
	Documents    map[string]string `db:"-" json:"documents,omitempty"`
	PasswordHash string            `db:"password_hash" json:"-"`
	RequestedAt  time.Time         `db:"requested_at" json:"requested_at"`
	Status       ReviewStatus      `db:"status" json:"status"`
	Reviewer     string            `db:"reviewer" json:"reviewer,omitempty"`
	ReviewedAt   *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Reason       string            `db:"reason" json:"reason,omitempty"`
}

// Clone returns a deep copy.
func (r *ReviewRequest) Clone() *ReviewRequest {
	if r == nil {
		return nil
	}
	out := *r
	if r.Changes != nil {
		out.Changes = make(map[string]string, len(r.Changes))
		for k, v := range r.Changes {
			out.Changes[k] = v
		}
	}
	out.Proofs = append([]string(nil), r.Proofs...)
	if r.Documents != nil {
		out.Documents = make(map[string]string, len(r.Documents))
		for k, v := range r.Documents {
			out.Documents[k] = v
		}
	}
	return &out
}

// Feedback is the review outcome shown to the requesting identity.
type Feedback struct {
	Identity   string       `db:"identity" json:"identity"`
	Status     ReviewStatus `db:"status" json:"status"`
	Reason     string       `db:"reason" json:"reason,omitempty"`
	Reviewer   string       `db:"reviewer" json:"reviewer"`
	ReviewedAt time.Time    `db:"reviewed_at" json:"reviewed_at"`
}

// ReviewOutcome is returned by approve and reject.
type ReviewOutcome struct {
	RequestID      string    `json:"request_id"`
	Status         string    `json:"status"`
	AlreadyHandled bool      `json:"already_handled"`
	Message        string    `json:"message"`
	Resident       *Resident `json:"resident,omitempty"`
	Feedback       *Feedback `json:"feedback,omitempty"`
}
