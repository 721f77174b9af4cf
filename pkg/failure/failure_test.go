package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessageIsVerbatim(t *testing.T) {
	err := New(UnsupportedFormat, MsgUnsupportedFormat)
	if err.Error() != "Unsupported manifest format" {
		t.Errorf("Error() = %q, want %q", err.Error(), "Unsupported manifest format")
	}
}

func TestWrapTakesCauseText(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ExternalTool, "", cause)
	if err.Message != "boom" {
		t.Errorf("message = %q, want boom", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped error to unwrap to cause")
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ""},
		{"plain", errors.New("x"), Internal},
		{"direct", New(Mismatch, MsgImageInfoMismatch), Mismatch},
		{"wrapped", fmt.Errorf("stage: %w", New(Timeout, "timed out")), Timeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromKeepsClassification(t *testing.T) {
	orig := New(MissingArtifact, MsgImageNotProduced)
	got := From(ExternalTool, fmt.Errorf("inspect: %w", orig))
	if got != orig {
		t.Errorf("From() = %v, want original error", got)
	}
	if From(ExternalTool, nil) != nil {
		t.Error("From(nil) should be nil")
	}
	plain := From(Load, errors.New("bad"))
	if plain.Class != Load || plain.Message != "bad" {
		t.Errorf("From(plain) = %+v", plain)
	}
}
