// internal/models/matching.go
package models

import "time"

// QueryType distinguishes the two ways a matcher asks a provider.
type QueryType string

const (
	QueryTypeByID QueryType = "by_id"
	QueryTypeText QueryType = "text_search"
)

// MatchingAttempt records one provider lookup for quota accounting. Every
// eligible matcher invocation registers exactly one, found or not.
type MatchingAttempt struct {
	ID           string    `json:"id" db:"id"`
	Query        string    `json:"query" db:"query"`
	QueryType    QueryType `json:"queryType" db:"query_type"`
	Source       Source    `json:"source" db:"source"`
	RestaurantID string    `json:"restaurantId" db:"restaurant_id"`
	Found        bool      `json:"found" db:"found"`
	Latitude     *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64  `json:"longitude,omitempty" db:"longitude"`
	RadiusMeters *int      `json:"radiusMeters,omitempty" db:"radius_meters"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Matching is the transient return value of one matcher invocation.
type Matching struct {
	Restaurant *RestaurantAndProfiles
	Matched    bool
	Err        error
}
