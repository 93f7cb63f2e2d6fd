package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/promptroute/promptroute/types"
)

func TestClassifyRateLimit(t *testing.T) {
	pe := Classify("openai-main", &StatusError{StatusCode: 429, Body: "slow down"})
	if pe.Reason != types.ReasonRateLimit || !pe.Retryable {
		t.Errorf("got %+v", pe)
	}
	if pe.HTTPStatus != 429 || pe.Provider != "openai-main" {
		t.Errorf("got %+v", pe)
	}
}

func TestClassifyTimeoutStatuses(t *testing.T) {
	for _, status := range []int{408, 504} {
		pe := Classify("p", &StatusError{StatusCode: status})
		if pe.Reason != types.ReasonTimeout || !pe.Retryable {
			t.Errorf("status %d: got %+v", status, pe)
		}
	}
}

func TestClassifyOtherStatusesNotRetryable(t *testing.T) {
	for _, status := range []int{400, 401, 500, 503} {
		pe := Classify("p", &StatusError{StatusCode: status})
		if pe.Reason != types.ReasonProviderError || pe.Retryable {
			t.Errorf("status %d: got %+v", status, pe)
		}
	}
}

func TestClassifyContextCancellation(t *testing.T) {
	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		pe := Classify("p", fmt.Errorf("request failed: %w", cause))
		if pe.Reason != types.ReasonTimeout || !pe.Retryable {
			t.Errorf("%v: got %+v", cause, pe)
		}
	}
}

func TestClassifyWrappedStatusError(t *testing.T) {
	wrapped := fmt.Errorf("adapter: %w", &StatusError{StatusCode: 429})
	pe := Classify("p", wrapped)
	if pe.Reason != types.ReasonRateLimit {
		t.Errorf("got %+v", pe)
	}
}

func TestClassifyUnknownError(t *testing.T) {
	pe := Classify("p", errors.New("connection refused"))
	if pe.Reason != types.ReasonProviderError || pe.Retryable {
		t.Errorf("got %+v", pe)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	orig := &types.ProviderError{Reason: types.ReasonTimeout, Retryable: true}
	if got := Classify("p", orig); got != orig {
		t.Errorf("already-classified errors must pass through")
	}
}
