// Package fallback walks an ordered target list until an attempt
// succeeds or a non-retryable failure stops the chain. It applies no
// delay, no backoff, and no cap beyond the list length.
package fallback

import (
	"context"
	"errors"
	"fmt"

	"github.com/promptroute/promptroute/internal/providers"
	"github.com/promptroute/promptroute/types"
)

// Target is one (provider, model) attempt. Element zero of a target list
// is the primary.
type Target struct {
	ProviderID   string
	ProviderType string
	Model        string
}

// AttemptFn performs one provider call against a resolved adapter.
type AttemptFn func(ctx context.Context, caller providers.Caller, target Target) (*types.ChatResponse, error)

// GetProvider resolves a target to a live adapter instance.
type GetProvider func(target Target) (providers.Caller, error)

// OnAttempt observes every attempt. err is nil on success, and carries the
// classified failure otherwise.
type OnAttempt func(target Target, err *types.ProviderError)

// Execute tries each target in order. Retryable provider errors advance
// to the next target; non-retryable ones surface immediately. Errors that
// are not provider errors also surface immediately, without fallback.
func Execute(ctx context.Context, targets []Target, getProvider GetProvider, attempt AttemptFn, onAttempt OnAttempt) (*types.ChatResponse, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("fallback: empty target list")
	}

	var last *types.ProviderError
	for _, target := range targets {
		caller, err := getProvider(target)
		if err != nil {
			return nil, err
		}

		resp, err := attempt(ctx, caller, target)
		if err == nil {
			if onAttempt != nil {
				onAttempt(target, nil)
			}
			return resp, nil
		}

		var pe *types.ProviderError
		if !errors.As(err, &pe) {
			return nil, err
		}
		if onAttempt != nil {
			onAttempt(target, pe)
		}
		if !pe.Retryable {
			return nil, pe
		}
		last = pe
	}
	return nil, last
}
