package domain

import (
	"context"
	"errors"
)

// ErrEmptyAddress is returned by a Geocoder asked to resolve an empty address.
var ErrEmptyAddress = errors.New("address is required")

// Geocoder resolves free-form addresses to coordinates.
type Geocoder interface {
	// Geocode returns nil coordinates with a nil error when the address cannot
	// be resolved. Only precondition failures such as ErrEmptyAddress are
	// returned as errors.
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}
