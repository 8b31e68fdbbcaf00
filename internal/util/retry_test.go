package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoff_SuccessFirstTry(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, func(attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("transient error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls (2 failures + 1 success), got %d", calls)
	}
}

func TestRetryWithBackoff_AllAttemptsExhausted(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 2, func(attempt int) error {
		calls++
		return errors.New("persistent error")
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls (maxRetries+1), got %d", calls)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, 3, func(attempt int) error {
		return errors.New("should not retry after cancellation")
	})
	if err == nil {
		t.Fatal("Expected error from cancelled context")
	}
}

func TestRetryWithBackoff_BackoffIncreases(t *testing.T) {
	start := time.Now()
	_ = RetryWithBackoff(context.Background(), 1, func(attempt int) error {
		return errors.New("fail")
	})
	elapsed := time.Since(start)
	if elapsed < 900*time.Millisecond {
		t.Errorf("Expected at least ~1s of backoff, got %v", elapsed)
	}
}
