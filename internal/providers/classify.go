package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/promptroute/promptroute/types"
)

// Classify wraps any adapter failure into a ProviderError whose reason
// and retryability drive the fallback executor:
//
//	HTTP 429            -> rate-limit, retryable
//	HTTP 408 or 504     -> timeout, retryable
//	context cancelled   -> timeout, retryable
//	anything else       -> provider-error, not retryable
func Classify(providerID string, err error) *types.ProviderError {
	var pe *types.ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &types.ProviderError{
			Reason:    types.ReasonTimeout,
			Retryable: true,
			Provider:  providerID,
			Message:   err.Error(),
			Cause:     err,
		}
	}

	var se *StatusError
	if errors.As(err, &se) {
		out := &types.ProviderError{
			Provider:   providerID,
			Code:       fmt.Sprintf("http-%d", se.StatusCode),
			HTTPStatus: se.StatusCode,
			Message:    se.Error(),
			Cause:      err,
		}
		switch se.StatusCode {
		case http.StatusTooManyRequests:
			out.Reason = types.ReasonRateLimit
			out.Retryable = true
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			out.Reason = types.ReasonTimeout
			out.Retryable = true
		default:
			out.Reason = types.ReasonProviderError
		}
		return out
	}

	return &types.ProviderError{
		Reason:   types.ReasonProviderError,
		Provider: providerID,
		Message:  err.Error(),
		Cause:    err,
	}
}
