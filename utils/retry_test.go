package utils

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewLogger()}

	attempts := 0
	err := r.Do("flaky-op", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewLogger()}

	wantErr := errors.New("boom")
	attempts := 0
	err := r.Do("doomed-op", func() error {
		attempts++
		return wantErr
	})
	if err == nil {
		t.Fatal("Do() = nil, want error after exhausting attempts")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error chain lost the last failure: %v", err)
	}
	if !strings.Contains(err.Error(), "doomed-op") {
		t.Errorf("error %q does not name the operation", err)
	}
}

func TestJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		j := jitter(base)
		if j < 0 || j > base/2 {
			t.Fatalf("jitter(%v) = %v, want within [0, %v]", base, j, base/2)
		}
	}
	if j := jitter(0); j != 0 {
		t.Errorf("jitter(0) = %v, want 0", j)
	}
}
