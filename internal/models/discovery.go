// internal/models/discovery.go
package models

// Source identifies one external data provider.
type Source string

const (
	SourceGoogle      Source = "google"
	SourceTripAdvisor Source = "tripadvisor"
	SourceOverpass    Source = "overpass"
)

// SourcePriority is the fixed per-field reconciliation order. A provider may
// win on one field and lose on another; priority is applied field by field.
var SourcePriority = []Source{SourceGoogle, SourceTripAdvisor, SourceOverpass}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ProviderIdentity is the natural key of an entity at one provider. It is
// used both to deduplicate discovery results and to look up the persisted
// aggregate.
type ProviderIdentity struct {
	Source       Source `json:"source"`
	ExternalID   string `json:"externalId"`
	ExternalType string `json:"externalType"`
}

// Equal compares the full (source, externalId, externalType) triple.
func (i ProviderIdentity) Equal(other ProviderIdentity) bool {
	return i.Source == other.Source &&
		i.ExternalID == other.ExternalID &&
		i.ExternalType == other.ExternalType
}

// Address holds the normalized address fields a provider may return.
type Address struct {
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"houseNumber,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
}

// ProviderRecord is the raw normalized shape a provider returns for one
// entity. Optional fields are pointers so that reconciliation can tell
// "absent" from "empty".
type ProviderRecord struct {
	Identity     ProviderIdentity `json:"identity"`
	Name         *string          `json:"name,omitempty"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
	Street       *string          `json:"street,omitempty"`
	HouseNumber  *string          `json:"houseNumber,omitempty"`
	Postcode     *string          `json:"postcode,omitempty"`
	City         *string          `json:"city,omitempty"`
	Country      *string          `json:"country,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
	OpeningHours []ServiceWindow  `json:"openingHours,omitempty"`
}

// DiscoveredProfile is one provider-sourced discovery result. It is
// ephemeral: consumed by the matching pipeline, never persisted as-is.
type DiscoveredProfile struct {
	Identity    ProviderIdentity `json:"identity"`
	Name        string           `json:"name"`
	Coordinates Coordinates      `json:"coordinates"`
	Address     Address          `json:"address"`
	Tags        []string         `json:"tags,omitempty"`
}
