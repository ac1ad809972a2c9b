package geocode

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/middle-housing/internal/resilience"
)

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
	Available() bool
}

// statusError turns a non-200 provider response into an error, marking
// retryable statuses as transient.
func statusError(provider string, resp *http.Response) error {
	err := eris.Errorf("geocode: %s returned status %d", provider, resp.StatusCode)
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(err, resp.StatusCode)
	}
	return err
}
