package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{&Error{Code: CodeConflict, Op: "Learning.Mastery.RecordAttempt", Message: "version moved"}, "Learning.Mastery.RecordAttempt: version moved [conflict]"},
		{&Error{Code: CodeInternal, Op: "op"}, "op [internal]"},
		{&Error{Code: CodeValidation, Message: "bad skill"}, "bad skill [validation]"},
		{&Error{Code: CodeNotFound}, "not_found"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("Error(): want=%q got=%q", tc.want, got)
		}
	}
}

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := Validation("op", "difficulty %d out of range", 11)
	wrapped := Wrap(CodeInternal, "outer", fmt.Errorf("context: %w", inner))
	if got := CodeOf(wrapped); got != CodeValidation {
		t.Fatalf("code: want=%s got=%s", CodeValidation, got)
	}
	if Wrap(CodeInternal, "op", nil) != nil {
		t.Fatalf("Wrap(nil) should be nil")
	}

	cause := errors.New("disk full")
	err := Wrap(CodeRetryable, "op", cause)
	if !IsCode(err, CodeRetryable) || !errors.Is(err, cause) {
		t.Fatalf("wrap foreign: code=%s is-cause=%v", CodeOf(err), errors.Is(err, cause))
	}
}

func TestIsTransient(t *testing.T) {
	for code, want := range map[ErrorCode]bool{
		CodeConflict:   true,
		CodeRetryable:  true,
		CodeValidation: false,
		CodeInternal:   false,
	} {
		if got := IsTransient(NewError(code, "op", "", nil)); got != want {
			t.Fatalf("IsTransient(%s): want=%v got=%v", code, want, got)
		}
	}
	if IsTransient(errors.New("plain")) || IsCode(errors.New("plain"), "") {
		t.Fatalf("foreign errors carry no code")
	}
}
