package providers

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-abc-123")
	if got := GetRequestID(ctx); got != "req-abc-123" {
		t.Errorf("GetRequestID() = %q", got)
	}
}

func TestRequestIDMissing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on bare context = %q", got)
	}
}

func TestRequestIDOverwrite(t *testing.T) {
	ctx := WithRequestID(context.Background(), "first")
	ctx = WithRequestID(ctx, "second")
	if got := GetRequestID(ctx); got != "second" {
		t.Errorf("GetRequestID() = %q", got)
	}
}
