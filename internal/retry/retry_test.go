package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func fastOpts() Opts {
	return Opts{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var retried []int
	got, err := Do(context.Background(), fastOpts(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	}, func(attempt int, err error) { retried = append(retried, attempt) })

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 {
		t.Errorf("Expected 2 retry callbacks, got %v", retried)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastOpts(), func(context.Context) (string, error) {
		calls++
		return "", errFatal
	}, nil)

	if !errors.Is(err, errFatal) {
		t.Errorf("Expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastOpts(), func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	}, nil)

	if !errors.Is(err, errTransient) {
		t.Errorf("Expected transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := fastOpts()
	opts.InitialWait = time.Hour
	opts.MaxWait = time.Hour

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, opts, func(context.Context) (int, error) {
			calls++
			return 0, errTransient
		}, nil)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, errTransient) {
			t.Errorf("Expected last error to be returned, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Do to return after cancellation")
	}
}
