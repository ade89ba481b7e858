package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUntil_DoneFirstAttempt(t *testing.T) {
	calls := 0
	err := Until(context.Background(), 0, 5, func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestUntil_DoneStopsPolling(t *testing.T) {
	calls := 0
	err := Until(context.Background(), 0, 10, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 calls, got %d", calls)
	}
}

func TestUntil_TimeoutAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Until(context.Background(), 0, 4, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected exactly 4 calls, got %d", calls)
	}
}

func TestUntil_CheckErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Until(context.Background(), 0, 10, func(ctx context.Context) (bool, error) {
		calls++
		if calls == 2 {
			return false, boom
		}
		return false, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected check error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestUntil_ContextCancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Until(ctx, time.Minute, 5, func(ctx context.Context) (bool, error) {
		calls++
		cancel()
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
