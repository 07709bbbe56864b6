// internal/providers/tripadvisor.go
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"restaurant-finder/internal/common/config"
	httpclient "restaurant-finder/internal/common/http"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/common/metrics"
	"restaurant-finder/internal/models"
)

const tripAdvisorExternalType = "location"

// TripAdvisorProvider queries the TripAdvisor Content API.
type TripAdvisorProvider struct {
	cfg    config.TripAdvisorConfig
	client *httpclient.Client
	logger logger.Logger
}

func NewTripAdvisorProvider(cfg config.TripAdvisorConfig, log logger.Logger) *TripAdvisorProvider {
	return &TripAdvisorProvider{
		cfg:    cfg,
		client: httpclient.NewClient(time.Duration(cfg.TimeoutMs) * time.Millisecond),
		logger: log.WithFields(map[string]interface{}{"provider": string(models.SourceTripAdvisor)}),
	}
}

func (p *TripAdvisorProvider) Name() string          { return string(models.SourceTripAdvisor) }
func (p *TripAdvisorProvider) Source() models.Source { return models.SourceTripAdvisor }

type tripAdvisorLocation struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	Latitude   string `json:"latitude"`
	Longitude  string `json:"longitude"`
	AddressObj struct {
		Street1    string `json:"street1"`
		City       string `json:"city"`
		Country    string `json:"country"`
		Postalcode string `json:"postalcode"`
	} `json:"address_obj"`
	Cuisine []struct {
		Name string `json:"name"`
	} `json:"cuisine"`
}

func (p *TripAdvisorProvider) FindByID(ctx context.Context, externalID, externalType, language string) (*models.ProviderRecord, error) {
	q := url.Values{}
	q.Set("key", p.cfg.APIKey)
	if language != "" {
		q.Set("language", language)
	}

	var loc tripAdvisorLocation
	status, err := p.get(ctx, "/location/"+url.PathEscape(externalID)+"/details", q, &loc)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || loc.LocationID == "" {
		return nil, nil
	}

	rec := p.toRecord(loc)
	return &rec, nil
}

func (p *TripAdvisorProvider) SearchNearby(ctx context.Context, query string, center models.Coordinates, radiusMeters int, language string) ([]models.ProviderRecord, error) {
	q := url.Values{}
	q.Set("key", p.cfg.APIKey)
	if language != "" {
		q.Set("language", language)
	}
	q.Set("searchQuery", query)
	q.Set("category", "restaurants")
	q.Set("latLong", fmt.Sprintf("%f,%f", center.Latitude, center.Longitude))
	q.Set("radius", fmt.Sprintf("%d", radiusMeters))
	q.Set("radiusUnit", "m")

	var payload struct {
		Data []tripAdvisorLocation `json:"data"`
	}
	status, err := p.get(ctx, "/location/search", q, &payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	records := make([]models.ProviderRecord, 0, len(payload.Data))
	for _, loc := range payload.Data {
		records = append(records, p.toRecord(loc))
	}
	return records, nil
}

// get performs one API call; a 404 is reported through the status return,
// not as an error, because "not found" is an expected outcome here.
func (p *TripAdvisorProvider) get(ctx context.Context, path string, q url.Values, out interface{}) (int, error) {
	start := time.Now()
	reqURL := p.cfg.BaseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		return 0, wrapTransportError(ctx, p.Name(), err)
	}
	defer resp.Body.Close()

	metrics.ProviderCallDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusNotFound {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "ok").Inc()
		return resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		return resp.StatusCode, statusToError(p.Name(), resp.StatusCode)
	}

	metrics.ProviderCalls.WithLabelValues(p.Name(), "ok").Inc()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode tripadvisor response: %w", err)
	}
	return resp.StatusCode, nil
}

func (p *TripAdvisorProvider) toRecord(loc tripAdvisorLocation) models.ProviderRecord {
	rec := models.ProviderRecord{
		Identity: models.ProviderIdentity{
			Source:       models.SourceTripAdvisor,
			ExternalID:   loc.LocationID,
			ExternalType: tripAdvisorExternalType,
		},
		Name:     strPtr(loc.Name),
		Street:   strPtr(loc.AddressObj.Street1),
		City:     strPtr(loc.AddressObj.City),
		Country:  strPtr(loc.AddressObj.Country),
		Postcode: strPtr(loc.AddressObj.Postalcode),
	}

	if lat, err := strconv.ParseFloat(loc.Latitude, 64); err == nil {
		rec.Latitude = floatPtr(lat)
	}
	if lng, err := strconv.ParseFloat(loc.Longitude, 64); err == nil {
		rec.Longitude = floatPtr(lng)
	}
	for _, c := range loc.Cuisine {
		if c.Name != "" {
			rec.Tags = append(rec.Tags, c.Name)
		}
	}
	return rec
}
