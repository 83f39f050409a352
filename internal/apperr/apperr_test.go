package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("Missing required fields."), KindValidation},
		{"decode", Decode("invalid base64", cause), KindDecode},
		{"persistence wrapped", fmt.Errorf("submit: %w", Persistence("save record", cause)), KindPersistence},
		{"notification", Notification("send mail", cause), KindNotification},
		{"plain error", cause, KindUnexpected},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("%s: KindOf = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Persistence("save attendance record", cause)

	if err.Error() != "save attendance record: disk full" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if Validation("x").Error() != "x" {
		t.Error("validation error without cause should print its message only")
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := HTTPStatus(Validation("bad")); got != http.StatusBadRequest {
		t.Errorf("validation: got %d", got)
	}
	if got := HTTPStatus(Persistence("db", nil)); got != http.StatusInternalServerError {
		t.Errorf("persistence: got %d", got)
	}
	if got := HTTPStatus(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("unexpected: got %d", got)
	}
}
