package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessageStripsKindPrefix(t *testing.T) {
	err := fmt.Errorf("%w: order must be 1 or greater", ErrValidation)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected wrapped validation error")
	}
	if got := Message(err); got != "order must be 1 or greater" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMessageBareSentinel(t *testing.T) {
	if got := Message(ErrNotFound); got != "not found" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := Message(nil); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}
