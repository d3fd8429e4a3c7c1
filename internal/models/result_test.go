package models

import (
	"errors"
	"testing"
)

func TestNewErrorResult_Messages(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		address  string
		wantKind ErrorKind
		want     string
	}{
		{ErrorKindNotFound, "Invalid Location", ErrorKindNotFound, "Could not find location: Invalid Location. Please check the address and try again."},
		{ErrorKindUnauthorized, "x", ErrorKindUnauthorized, MsgUnauthorized},
		{ErrorKindLocationNotFound, "x", ErrorKindLocationNotFound, MsgLocationNotFound},
		{ErrorKindUpstreamFailure, "x", ErrorKindUpstreamFailure, MsgUpstreamFailure},
		{ErrorKindProcessingFailure, "x", ErrorKindProcessingFailure, MsgProcessingFailure},
		{ErrorKind("bogus"), "x", ErrorKindUpstreamFailure, MsgUpstreamFailure},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got := NewErrorResult(tt.kind, tt.address, nil)
			if got.Message != tt.want {
				t.Errorf("Message = %q, want %q", got.Message, tt.want)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
		})
	}
}

func TestErrorResult_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(NewErrorResult(ErrorKindProcessingFailure, "", cause))

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	var res *ErrorResult
	if !errors.As(err, &res) {
		t.Fatal("errors.As(*ErrorResult) = false, want true")
	}
	if res.Error() != MsgProcessingFailure+": boom" {
		t.Errorf("Error() = %q", res.Error())
	}
}
