package observability

import (
	"context"
	"errors"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// Readiness combines several checkers; it is ready only when all are.
type Readiness []sharedobs.ReadinessChecker

// CheckReadiness returns the joined errors of every checker that is not ready.
func (r Readiness) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range r {
		if c == nil {
			continue
		}
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
