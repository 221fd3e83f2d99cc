package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "not found", err: NotFound("route not found: %s", "r1"), want: KindNotFound},
		{name: "bad request", err: BadRequest("duplicate name"), want: KindBadRequest},
		{name: "wrapped", err: fmt.Errorf("create route: %w", BadRequest("invalid url")), want: KindBadRequest},
		{name: "plain error", err: cause, want: ""},
		{name: "nil", err: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("expected kind %q, got %q", tt.want, got)
			}
		})
	}
}

func TestError_WrapAndDetails(t *testing.T) {
	cause := errors.New("boom")
	err := BadRequest("unsupported spec").WithDetails([]string{"openapi", "swagger"}).Wrap(cause)

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable with errors.Is")
	}
	if err.Error() != "unsupported spec: boom" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	formats, ok := err.Details.([]string)
	if !ok || len(formats) != 2 {
		t.Errorf("expected details to hold 2 formats, got %v", err.Details)
	}
	if !IsBadRequest(err) || IsNotFound(err) {
		t.Error("expected error to be classified as bad request only")
	}
}
