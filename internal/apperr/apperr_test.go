package apperr

import (
	"errors"
	"testing"
)

func TestKindSurvivesWrap(t *testing.T) {
	base := errors.New("device busy")
	err := Wrap(base, AudioUnavailable, "resume output", "Audio device is not available")
	if !Is(err, AudioUnavailable) {
		t.Fatalf("kind = %q, want %q", Kind(err), AudioUnavailable)
	}
	if Is(err, RecordingUnsupported) {
		t.Fatalf("unexpected kind match")
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error lost its cause")
	}
	if got := UserMessage(err); got != "Audio device is not available" {
		t.Fatalf("user message = %q", got)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, InvalidInput, "x", "y"); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
	if Is(nil, InvalidInput) {
		t.Fatalf("nil error must not match a kind")
	}
}

func TestNewCarriesKind(t *testing.T) {
	err := New(InvalidInput, "tempo out of range", "Tempo must be between 40 and 240")
	if Kind(err) != InvalidInput {
		t.Fatalf("kind = %q", Kind(err))
	}
}
