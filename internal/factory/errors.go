package factory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
)

var (
	ErrMissingParameters   = errors.New("missing parameters")
	ErrInvalidAction       = errors.New("invalid action")
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// MissingParametersError lists the required keys absent from a parameter map.
// It matches ErrMissingParameters with errors.Is.
type MissingParametersError struct {
	Provider models.Provider
	Keys     []string
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("missing %s params: %s", label(e.Provider), strings.Join(e.Keys, ", "))
}

func (e *MissingParametersError) Is(target error) bool {
	return target == ErrMissingParameters
}

// IsValidation reports whether err is one of the input-validation kinds
// raised by this package.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingParameters) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrUnsupportedProvider)
}

func label(p models.Provider) string {
	switch p {
	case models.ProviderAWS:
		return "AWS"
	case models.ProviderAzure:
		return "Azure"
	case models.ProviderGCP:
		return "GCP"
	case models.ProviderOnPremise:
		return "On-Premise"
	default:
		return string(p)
	}
}
