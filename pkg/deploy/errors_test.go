package deploy

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		predicate func(error) bool
	}{
		{"validation", NewValidationError("bad input"), IsValidation},
		{"transient", NewTransientError("flaky", errors.New("io")), IsTransient},
		{"throttled", NewThrottledError("slow down", errors.New("429")), IsThrottled},
		{"permanent", NewPermanentError("denied", errors.New("403")), IsPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.predicate(tt.err) {
				t.Errorf("%s predicate rejected its own class", tt.name)
			}
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.predicate(wrapped) {
				t.Errorf("%s predicate must see through wrapping", tt.name)
			}
		})
	}
}

func TestErrorCarriesCodeAndStage(t *testing.T) {
	cause := errors.New("provider said no")
	err := NewPermanentError("creating function", cause).
		WithCode("InvalidParameterValueException").
		WithStage(StageCreateFunction)

	if got := Code(err); got != "InvalidParameterValueException" {
		t.Errorf("Code() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("underlying cause lost")
	}

	wrapped := fmt.Errorf("run failed: %w", err)
	if got := Code(wrapped); got != "InvalidParameterValueException" {
		t.Errorf("Code() through wrapping = %q", got)
	}
}

func TestErrorIsMatchesClassAndCode(t *testing.T) {
	err := NewThrottledError("too many requests", nil).WithCode("TooManyRequestsException")

	if !errors.Is(err, &Error{Class: ErrorClassThrottled}) {
		t.Error("class-only sentinel must match")
	}
	if !errors.Is(err, &Error{Class: ErrorClassThrottled, Code: "TooManyRequestsException"}) {
		t.Error("class+code sentinel must match")
	}
	if errors.Is(err, &Error{Class: ErrorClassThrottled, Code: "LimitExceededException"}) {
		t.Error("mismatched code must not match")
	}
	if errors.Is(err, &Error{Class: ErrorClassTransient}) {
		t.Error("mismatched class must not match")
	}
}

func TestErrorMessageIncludesStage(t *testing.T) {
	err := NewLocalError("writing artifact", errors.New("disk full")).WithStage(StagePackage)
	want := "[local] " + StagePackage + ": writing artifact: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
