package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/promptroute/promptroute/internal/providers"
	"github.com/promptroute/promptroute/types"
)

type stubCaller struct {
	resp *types.ChatResponse
	err  error
}

func (s *stubCaller) ChatCompletion(ctx context.Context, opts providers.Options) (*types.ChatResponse, error) {
	return s.resp, s.err
}

func targetList(n int) []Target {
	out := make([]Target, n)
	for i := range out {
		out[i] = Target{ProviderID: "p", ProviderType: "openai", Model: "m"}
	}
	return out
}

func retryable(reason types.FailureReason) *types.ProviderError {
	return &types.ProviderError{Reason: reason, Retryable: true, Message: string(reason)}
}

func TestSuccessOnFirstAttempt(t *testing.T) {
	want := &types.ChatResponse{ID: "r1"}
	var attempts []Target
	resp, err := Execute(context.Background(), targetList(3),
		func(Target) (providers.Caller, error) { return &stubCaller{resp: want}, nil },
		func(ctx context.Context, c providers.Caller, tg Target) (*types.ChatResponse, error) {
			attempts = append(attempts, tg)
			return c.ChatCompletion(ctx, providers.Options{})
		},
		nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != want {
		t.Error("wrong response")
	}
	if len(attempts) != 1 {
		t.Errorf("attempts: %d", len(attempts))
	}
}

func TestRetryableAdvancesToNextTarget(t *testing.T) {
	want := &types.ChatResponse{ID: "r2"}
	calls := 0
	var observed []*types.ProviderError
	resp, err := Execute(context.Background(), targetList(2),
		func(Target) (providers.Caller, error) { return &stubCaller{}, nil },
		func(context.Context, providers.Caller, Target) (*types.ChatResponse, error) {
			calls++
			if calls == 1 {
				return nil, retryable(types.ReasonRateLimit)
			}
			return want, nil
		},
		func(tg Target, perr *types.ProviderError) { observed = append(observed, perr) })
	if err != nil {
		t.Fatal(err)
	}
	if resp != want {
		t.Error("wrong response")
	}
	if calls != 2 {
		t.Errorf("calls: %d", calls)
	}
	// One failure, one success notification.
	if len(observed) != 2 || observed[0] == nil || observed[1] != nil {
		t.Errorf("observed: %v", observed)
	}
	if observed[0].Reason != types.ReasonRateLimit {
		t.Errorf("reason: %v", observed[0].Reason)
	}
}

func TestNonRetryableShortCircuits(t *testing.T) {
	fatal := &types.ProviderError{Reason: types.ReasonProviderError, Retryable: false, Message: "bad request"}
	calls := 0
	_, err := Execute(context.Background(), targetList(3),
		func(Target) (providers.Caller, error) { return &stubCaller{}, nil },
		func(context.Context, providers.Caller, Target) (*types.ChatResponse, error) {
			calls++
			return nil, fatal
		},
		nil)
	if calls != 1 {
		t.Errorf("calls: %d", calls)
	}
	var pe *types.ProviderError
	if !errors.As(err, &pe) || pe != fatal {
		t.Errorf("err: %v", err)
	}
}

func TestExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), targetList(3),
		func(Target) (providers.Caller, error) { return &stubCaller{}, nil },
		func(context.Context, providers.Caller, Target) (*types.ChatResponse, error) {
			calls++
			if calls == 3 {
				return nil, retryable(types.ReasonTimeout)
			}
			return nil, retryable(types.ReasonRateLimit)
		},
		nil)
	if calls != 3 {
		t.Errorf("calls: %d", calls)
	}
	var pe *types.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err: %v", err)
	}
	if pe.Reason != types.ReasonTimeout {
		t.Errorf("want last error, got %v", pe.Reason)
	}
}

func TestNonProviderErrorBypassesFallback(t *testing.T) {
	boom := errors.New("broken pipe in user code")
	calls := 0
	_, err := Execute(context.Background(), targetList(2),
		func(Target) (providers.Caller, error) { return &stubCaller{}, nil },
		func(context.Context, providers.Caller, Target) (*types.ChatResponse, error) {
			calls++
			return nil, boom
		},
		nil)
	if calls != 1 {
		t.Errorf("calls: %d", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err: %v", err)
	}
}

func TestProviderResolutionFailureStops(t *testing.T) {
	resolveErr := types.NewError(types.KindExecution, "provider-credentials", "no key")
	_, err := Execute(context.Background(), targetList(2),
		func(Target) (providers.Caller, error) { return nil, resolveErr },
		func(context.Context, providers.Caller, Target) (*types.ChatResponse, error) {
			t.Fatal("attempt should not run")
			return nil, nil
		},
		nil)
	var ee *types.Error
	if !errors.As(err, &ee) || ee.Code != "provider-credentials" {
		t.Errorf("err: %v", err)
	}
}

func TestEmptyTargets(t *testing.T) {
	_, err := Execute(context.Background(), nil, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}
