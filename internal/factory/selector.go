package factory

import (
	"fmt"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
)

// Get returns the factory for provider. Factories are stateless values, so a
// fresh one is built on every call.
func Get(provider models.Provider) (Factory, error) {
	switch provider {
	case models.ProviderAWS:
		return NewAWS(), nil
	case models.ProviderAzure:
		return NewAzure(), nil
	case models.ProviderGCP:
		return NewGCP(), nil
	case models.ProviderOnPremise:
		return NewOnPrem(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}

// Providers lists every supported provider.
func Providers() []models.Provider {
	return []models.Provider{
		models.ProviderAWS,
		models.ProviderAzure,
		models.ProviderGCP,
		models.ProviderOnPremise,
	}
}
