// internal/models/search.go
package models

import "time"

// DistanceRange is the caller-facing distance choice mapped to a distance
// band in configuration.
type DistanceRange string

const (
	DistanceClose    DistanceRange = "close"
	DistanceMidRange DistanceRange = "mid_range"
	DistanceFar      DistanceRange = "far"
)

// ServiceWindow is the time slot the caller wants to eat in.
type ServiceWindow struct {
	Weekday  time.Weekday `json:"weekday"`
	OpensAt  string       `json:"opensAt"`  // "HH:MM"
	ClosesAt string       `json:"closesAt"` // "HH:MM"
}

// Search is the aggregate root of one restaurant search session.
// Exhausted is sticky: once true the engine never resets it.
type Search struct {
	ID            string        `json:"id" db:"id"`
	Latitude      float64       `json:"latitude" db:"latitude"`
	Longitude     float64       `json:"longitude" db:"longitude"`
	DistanceRange DistanceRange `json:"distanceRange" db:"distance_range"`
	ServiceWindow ServiceWindow `json:"serviceWindow" db:"service_window"`
	Preferences   Preferences   `json:"preferences" db:"preferences"`
	Exhausted     bool          `json:"exhausted" db:"exhausted"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}

// Center returns the search center point.
func (s *Search) Center() Coordinates {
	return Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}
