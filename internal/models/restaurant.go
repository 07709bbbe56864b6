// internal/models/restaurant.go
package models

import "time"

// Restaurant is the persisted aggregate a discovered entity resolves to.
type Restaurant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// RestaurantProfile is one persisted row per (restaurant, source) pair.
// Version increments on every successful re-enrichment; UpdatedAt drives the
// freshness checks of the matcher chain.
type RestaurantProfile struct {
	ID           string          `json:"id" db:"id"`
	RestaurantID string          `json:"restaurantId" db:"restaurant_id"`
	Source       Source          `json:"source" db:"source"`
	ExternalID   string          `json:"externalId" db:"external_id"`
	ExternalType string          `json:"externalType" db:"external_type"`
	Name         *string         `json:"name,omitempty" db:"name"`
	Latitude     *float64        `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64        `json:"longitude,omitempty" db:"longitude"`
	Street       *string         `json:"street,omitempty" db:"street"`
	HouseNumber  *string         `json:"houseNumber,omitempty" db:"house_number"`
	Postcode     *string         `json:"postcode,omitempty" db:"postcode"`
	City         *string         `json:"city,omitempty" db:"city"`
	Country      *string         `json:"country,omitempty" db:"country"`
	Tags         []string        `json:"tags,omitempty" db:"tags"`
	OpeningHours []ServiceWindow `json:"openingHours,omitempty" db:"opening_hours"`
	Version      int             `json:"version" db:"version"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// Identity returns the provider identity stored on the profile.
func (p *RestaurantProfile) Identity() ProviderIdentity {
	return ProviderIdentity{
		Source:       p.Source,
		ExternalID:   p.ExternalID,
		ExternalType: p.ExternalType,
	}
}

// RestaurantAndProfiles is the in-flight aggregate threaded through the
// matcher chain. Matchers return an updated copy and never mutate shared
// state outside the returned value.
type RestaurantAndProfiles struct {
	Restaurant Restaurant          `json:"restaurant"`
	Profiles   []RestaurantProfile `json:"profiles"`
}

// ProfileFor returns the profile for a source, or nil.
func (r *RestaurantAndProfiles) ProfileFor(source Source) *RestaurantProfile {
	for i := range r.Profiles {
		if r.Profiles[i].Source == source {
			return &r.Profiles[i]
		}
	}
	return nil
}

// Identities lists the provider identities of every attached profile.
func (r *RestaurantAndProfiles) Identities() []ProviderIdentity {
	out := make([]ProviderIdentity, 0, len(r.Profiles))
	for i := range r.Profiles {
		out = append(out, r.Profiles[i].Identity())
	}
	return out
}

// ReconciledRestaurant is the caller-facing view assembled from the stored
// aggregate and its profiles, one winner per field.
type ReconciledRestaurant struct {
	RestaurantID string          `json:"restaurantId"`
	Name         string          `json:"name"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
	Address      Address         `json:"address"`
	Tags         []string        `json:"tags,omitempty"`
	OpeningHours []ServiceWindow `json:"openingHours,omitempty"`
}

// WithProfile returns a copy of the aggregate with the profile for the given
// source replaced or appended.
func (r *RestaurantAndProfiles) WithProfile(profile RestaurantProfile) *RestaurantAndProfiles {
	out := &RestaurantAndProfiles{
		Restaurant: r.Restaurant,
		Profiles:   make([]RestaurantProfile, 0, len(r.Profiles)+1),
	}
	replaced := false
	for i := range r.Profiles {
		if r.Profiles[i].Source == profile.Source {
			out.Profiles = append(out.Profiles, profile)
			replaced = true
			continue
		}
		out.Profiles = append(out.Profiles, r.Profiles[i])
	}
	if !replaced {
		out.Profiles = append(out.Profiles, profile)
	}
	return out
}
