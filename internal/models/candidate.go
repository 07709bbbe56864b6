// internal/models/candidate.go
package models

import "time"

// CandidateStatus is the outcome of evaluating one discovered entity.
type CandidateStatus string

const (
	CandidateReturned CandidateStatus = "Returned"
	CandidateRejected CandidateStatus = "Rejected"
)

// Rejection reasons used by the engine itself; validators may add their own.
const (
	ReasonNoRestaurantFound = "no_restaurant_found"
)

// SearchCandidate is one append-only log entry per evaluated candidate (or
// one terminal synthetic entry). Order is strictly increasing within a
// search; rows are never updated after creation.
type SearchCandidate struct {
	ID                       string          `json:"id" db:"id"`
	SearchID                 string          `json:"searchId" db:"search_id"`
	Order                    int             `json:"order" db:"candidate_order"`
	Status                   CandidateStatus `json:"status" db:"status"`
	RejectionReason          *string         `json:"rejectionReason,omitempty" db:"rejection_reason"`
	RestaurantID             *string         `json:"restaurantId,omitempty" db:"restaurant_id"`
	RecoveredFromCandidateID *string         `json:"recoveredFromCandidateId,omitempty" db:"recovered_from_candidate_id"`
	CreatedAt                time.Time       `json:"createdAt" db:"created_at"`
}

// IsReturned reports whether the candidate passed validation.
func (c *SearchCandidate) IsReturned() bool {
	return c.Status == CandidateReturned
}
