// internal/providers/overpass.go
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"restaurant-finder/internal/common/config"
	httpclient "restaurant-finder/internal/common/http"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/common/metrics"
	"restaurant-finder/internal/models"
)

// OverpassProvider queries the OpenStreetMap Overpass API. External ids are
// OSM element ids, external types the OSM element type (node/way/relation).
type OverpassProvider struct {
	cfg    config.OverpassConfig
	client *httpclient.Client
	logger logger.Logger
}

func NewOverpassProvider(cfg config.OverpassConfig, log logger.Logger) *OverpassProvider {
	return &OverpassProvider{
		cfg:    cfg,
		client: httpclient.NewClient(time.Duration(cfg.TimeoutMs) * time.Millisecond),
		logger: log.WithFields(map[string]interface{}{"provider": string(models.SourceOverpass)}),
	}
}

func (p *OverpassProvider) Name() string          { return string(models.SourceOverpass) }
func (p *OverpassProvider) Source() models.Source { return models.SourceOverpass }

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center,omitempty"`
	Tags map[string]string `json:"tags"`
}

// FindByID looks up one OSM element. OSM tags are not localized, so the
// language hint is ignored.
func (p *OverpassProvider) FindByID(ctx context.Context, externalID, externalType, _ string) (*models.ProviderRecord, error) {
	elementType := externalType
	if elementType == "" {
		elementType = "node"
	}
	query := fmt.Sprintf("[out:json];%s(%s);out center;", elementType, externalID)

	elements, err := p.run(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, nil
	}

	rec := p.toRecord(elements[0])
	return &rec, nil
}

func (p *OverpassProvider) SearchNearby(ctx context.Context, query string, center models.Coordinates, radiusMeters int, _ string) ([]models.ProviderRecord, error) {
	// Free-text matching on the name tag, case insensitive, restricted to
	// restaurant amenities around the center.
	ql := fmt.Sprintf(
		`[out:json];nwr["amenity"="restaurant"]["name"~"%s",i](around:%d,%f,%f);out center;`,
		escapeOverpassRegex(query), radiusMeters, center.Latitude, center.Longitude,
	)

	elements, err := p.run(ctx, ql)
	if err != nil {
		return nil, err
	}

	records := make([]models.ProviderRecord, 0, len(elements))
	for _, el := range elements {
		records = append(records, p.toRecord(el))
	}
	return records, nil
}

func (p *OverpassProvider) run(ctx context.Context, query string) ([]overpassElement, error) {
	start := time.Now()

	form := url.Values{}
	form.Set("data", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		return nil, wrapTransportError(ctx, p.Name(), err)
	}
	defer resp.Body.Close()

	metrics.ProviderCallDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		return nil, statusToError(p.Name(), resp.StatusCode)
	}

	metrics.ProviderCalls.WithLabelValues(p.Name(), "ok").Inc()

	var payload struct {
		Elements []overpassElement `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	return payload.Elements, nil
}

func (p *OverpassProvider) toRecord(el overpassElement) models.ProviderRecord {
	lat, lon := el.Lat, el.Lon
	if el.Center != nil {
		lat, lon = el.Center.Lat, el.Center.Lon
	}

	rec := models.ProviderRecord{
		Identity: models.ProviderIdentity{
			Source:       models.SourceOverpass,
			ExternalID:   strconv.FormatInt(el.ID, 10),
			ExternalType: el.Type,
		},
		Latitude:  floatPtr(lat),
		Longitude: floatPtr(lon),
	}

	if el.Tags != nil {
		rec.Name = strPtr(el.Tags["name"])
		rec.Street = strPtr(el.Tags["addr:street"])
		rec.HouseNumber = strPtr(el.Tags["addr:housenumber"])
		rec.Postcode = strPtr(el.Tags["addr:postcode"])
		rec.City = strPtr(el.Tags["addr:city"])
		rec.Country = strPtr(el.Tags["addr:country"])
		if cuisine := el.Tags["cuisine"]; cuisine != "" {
			rec.Tags = strings.Split(cuisine, ";")
		}
	}
	return rec
}

func escapeOverpassRegex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`, `"`, `\"`, `(`, `\(`, `)`, `\)`,
		`[`, `\[`, `]`, `\]`, `.`, `\.`, `*`, `\*`, `+`, `\+`, `?`, `\?`,
	)
	return replacer.Replace(s)
}
