// internal/providers/provider.go
package providers

import (
	"context"
	"fmt"
	"net/http"

	apperrors "restaurant-finder/internal/common/errors"
	"restaurant-finder/internal/models"
)

// Provider is one external restaurant data source. FindByID and SearchNearby
// return (nil/empty, nil) on "not found" and typed errors exposing the
// retriable capability otherwise.
type Provider interface {
	// Name is the provider instance name, also the circuit breaker key.
	Name() string
	// Source identifies which reconciliation slot this provider fills.
	Source() models.Source
	// FindByID fetches one record by its provider identity. Language is a
	// BCP 47 hint for localized fields; providers without localization ignore it.
	FindByID(ctx context.Context, externalID, externalType, language string) (*models.ProviderRecord, error)
	// SearchNearby looks up records around a point by free-text query.
	SearchNearby(ctx context.Context, query string, center models.Coordinates, radiusMeters int, language string) ([]models.ProviderRecord, error)
}

// Registry holds the provider instances in registration order. It is owned
// by application start-up and passed by reference into the scanner and the
// matchers.
type Registry struct {
	order  []string
	byName map[string]Provider
}

func NewProviderRegistry() *Registry {
	return &Registry{byName: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) *Registry {
	if _, exists := r.byName[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.byName[p.Name()] = p
	return r
}

// Get returns a provider by instance name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns the providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// statusToError maps an unexpected HTTP status to the error taxonomy:
// 5xx and 429 are transient, 401/403 signal misconfiguration, any other
// 4xx is a non-retryable client error.
func statusToError(source string, status int) error {
	err := fmt.Errorf("unexpected status %d", status)
	switch {
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return apperrors.NewServerError(source, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.NewAuthorizationError(source, err.Error())
	default:
		return apperrors.NewClientError(source, err)
	}
}

// wrapTransportError classifies transport-level failures: a deadline from
// the request context becomes a timeout, a cancellation stays a
// cancellation, anything else is treated as transient.
func wrapTransportError(ctx context.Context, source string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return apperrors.NewTimeoutError(source)
	}
	if ctx.Err() == context.Canceled {
		return apperrors.NewCancellationError(source, err)
	}
	return apperrors.NewServerError(source, err)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
