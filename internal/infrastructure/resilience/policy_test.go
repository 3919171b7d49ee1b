package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sony/gobreaker/v2"
)

func TestTransientRetriesOnlyListedErrors(t *testing.T) {
	errDown := errors.New("broker down")
	classify := Transient(errDown)

	if class := classify(fmt.Errorf("publish: %w", errDown)); !class.Retryable || !class.RecordFailure {
		t.Fatalf("expected wrapped listed error to retry, got %+v", class)
	}
	if class := classify(gobreaker.ErrOpenState); !class.Retryable {
		t.Fatalf("expected open breaker to retry, got %+v", class)
	}
	if class := classify(errors.New("bad payload")); class.Retryable || !class.RecordFailure {
		t.Fatalf("expected unlisted error to be permanent, got %+v", class)
	}
	if class := classify(context.DeadlineExceeded); class.Retryable || class.RecordFailure {
		t.Fatalf("expected deadline to be ignored, got %+v", class)
	}
}
