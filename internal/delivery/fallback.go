package delivery

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/SimelweN/rebooked-backend/pkg/courier"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
)

// bookWithFallback tries each provider in order, one at a time, bounded by
// attemptTimeout per provider. Attempts are strictly sequential: the next
// provider is only contacted after the previous one failed or timed out.
// When every provider fails the aggregated error carries each attempt.
func bookWithFallback(
	ctx context.Context,
	providers []courier.Provider,
	attemptTimeout time.Duration,
	parcel courier.ParcelRequest,
	observe func(provider, outcome string),
) (*courier.Booking, error) {
	if len(providers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no courier providers configured")
	}

	var attemptErrs error
	for _, provider := range providers {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		booking, err := provider.BookPickup(attemptCtx, parcel)
		cancel()

		if err == nil {
			if observe != nil {
				observe(provider.Name().String(), "success")
			}
			return booking, nil
		}
		if observe != nil {
			observe(provider.Name().String(), "failure")
		}
		attemptErrs = multierr.Append(attemptErrs, err)

		// Give up entirely when the caller is gone, not just the attempt.
		if ctx.Err() != nil {
			break
		}
	}

	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, attemptErrs, "all courier providers declined the booking")
}
