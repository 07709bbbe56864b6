// internal/providers/google.go
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"restaurant-finder/internal/common/config"
	httpclient "restaurant-finder/internal/common/http"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/common/metrics"
	"restaurant-finder/internal/models"
)

const googleExternalType = "place"

// GoogleProvider queries the Google Places API.
type GoogleProvider struct {
	cfg    config.GoogleConfig
	client *httpclient.Client
	logger logger.Logger
}

func NewGoogleProvider(cfg config.GoogleConfig, log logger.Logger) *GoogleProvider {
	return &GoogleProvider{
		cfg:    cfg,
		client: httpclient.NewClient(time.Duration(cfg.TimeoutMs) * time.Millisecond),
		logger: log.WithFields(map[string]interface{}{"provider": string(models.SourceGoogle)}),
	}
}

func (p *GoogleProvider) Name() string          { return string(models.SourceGoogle) }
func (p *GoogleProvider) Source() models.Source { return models.SourceGoogle }

type googlePlace struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Types        []string `json:"types"`
	OpeningHours struct {
		Periods []googlePeriod `json:"periods"`
	} `json:"opening_hours"`
}

type googlePeriod struct {
	Open  googleDayTime `json:"open"`
	Close googleDayTime `json:"close"`
}

type googleDayTime struct {
	Day  int    `json:"day"`  // 0=Sunday per the Places API
	Time string `json:"time"` // "HHMM"
}

func (p *GoogleProvider) FindByID(ctx context.Context, externalID, externalType, language string) (*models.ProviderRecord, error) {
	q := url.Values{}
	q.Set("place_id", externalID)
	q.Set("key", p.cfg.APIKey)
	q.Set("fields", "place_id,name,geometry,vicinity,types,opening_hours")
	if language != "" {
		q.Set("language", language)
	}

	var payload struct {
		Status string      `json:"status"`
		Result googlePlace `json:"result"`
	}
	if err := p.get(ctx, "/details/json", q, &payload); err != nil {
		return nil, err
	}

	switch payload.Status {
	case "OK":
		rec := p.toRecord(payload.Result)
		return &rec, nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, nil
	default:
		return nil, statusFromGoogle(payload.Status)
	}
}

func (p *GoogleProvider) SearchNearby(ctx context.Context, query string, center models.Coordinates, radiusMeters int, language string) ([]models.ProviderRecord, error) {
	q := url.Values{}
	q.Set("keyword", query)
	q.Set("location", fmt.Sprintf("%f,%f", center.Latitude, center.Longitude))
	q.Set("radius", fmt.Sprintf("%d", radiusMeters))
	q.Set("type", "restaurant")
	q.Set("key", p.cfg.APIKey)
	if language != "" {
		q.Set("language", language)
	}

	var payload struct {
		Status  string        `json:"status"`
		Results []googlePlace `json:"results"`
	}
	if err := p.get(ctx, "/nearbysearch/json", q, &payload); err != nil {
		return nil, err
	}

	switch payload.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, statusFromGoogle(payload.Status)
	}

	records := make([]models.ProviderRecord, 0, len(payload.Results))
	for _, place := range payload.Results {
		records = append(records, p.toRecord(place))
	}
	return records, nil
}

func (p *GoogleProvider) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	start := time.Now()
	reqURL := p.cfg.BaseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		return wrapTransportError(ctx, p.Name(), err)
	}
	defer resp.Body.Close()

	metrics.ProviderCallDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		return statusToError(p.Name(), resp.StatusCode)
	}

	metrics.ProviderCalls.WithLabelValues(p.Name(), "ok").Inc()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode google response: %w", err)
	}
	return nil
}

func (p *GoogleProvider) toRecord(place googlePlace) models.ProviderRecord {
	return models.ProviderRecord{
		Identity: models.ProviderIdentity{
			Source:       models.SourceGoogle,
			ExternalID:   place.PlaceID,
			ExternalType: googleExternalType,
		},
		Name:         strPtr(place.Name),
		Latitude:     floatPtr(place.Geometry.Location.Lat),
		Longitude:    floatPtr(place.Geometry.Location.Lng),
		Street:       strPtr(place.Vicinity),
		Tags:         place.Types,
		OpeningHours: periodsToWindows(place.OpeningHours.Periods),
	}
}

// periodsToWindows converts Places API opening periods into service windows.
// Periods closing on a different day than they open are clamped to midnight;
// the validator treats the window as same-day.
func periodsToWindows(periods []googlePeriod) []models.ServiceWindow {
	if len(periods) == 0 {
		return nil
	}
	windows := make([]models.ServiceWindow, 0, len(periods))
	for _, period := range periods {
		window := models.ServiceWindow{
			Weekday: time.Weekday(period.Open.Day),
			OpensAt: placesTime(period.Open.Time),
		}
		if period.Close.Day == period.Open.Day && period.Close.Time != "" {
			window.ClosesAt = placesTime(period.Close.Time)
		} else {
			window.ClosesAt = "23:59"
		}
		if window.OpensAt == "" {
			continue
		}
		windows = append(windows, window)
	}
	return windows
}

func placesTime(hhmm string) string {
	if len(hhmm) != 4 {
		return ""
	}
	return hhmm[:2] + ":" + hhmm[2:]
}

// statusFromGoogle maps Places API status strings to the error taxonomy.
func statusFromGoogle(status string) error {
	source := string(models.SourceGoogle)
	switch status {
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return statusToError(source, http.StatusTooManyRequests)
	case "REQUEST_DENIED":
		return statusToError(source, http.StatusForbidden)
	default:
		return statusToError(source, http.StatusBadRequest)
	}
}
