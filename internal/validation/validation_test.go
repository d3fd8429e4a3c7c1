package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAddress_Blank(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
		{"newlines", "\n\r\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateAddress(tc.input, 100)
			if !errors.Is(err, ErrAddressBlank) {
				t.Fatalf("error = %v, want ErrAddressBlank", err)
			}
			if msg := Message(err); msg != "Please enter an address." {
				t.Errorf("Message() = %q", msg)
			}
			if !IsBlank(tc.input) {
				t.Errorf("IsBlank(%q) = false", tc.input)
			}
		})
	}
}

// TestValidateAddress_Valid verifies that common address shapes pass and are trimmed.
func TestValidateAddress_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"New York", "New York"},
		{"  10001 ", "10001"},
		{"1600 Amphitheatre Pkwy., Mountain View, CA 94043", "1600 Amphitheatre Pkwy., Mountain View, CA 94043"},
		{"São Paulo", "São Paulo"},
		{"221B Baker St #2\tLondon", "221B Baker St #2\tLondon"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ValidateAddress(tc.input, 200)
			if err != nil {
				t.Fatalf("ValidateAddress(%q) error = %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ValidateAddress(%q) = %q, want %q", tc.input, got, tc.want)
			}
			if IsBlank(tc.input) {
				t.Errorf("IsBlank(%q) = true", tc.input)
			}
		})
	}
}

// TestValidateAddress_MaxLength verifies the limit counts runes, not bytes.
func TestValidateAddress_MaxLength(t *testing.T) {
	if _, err := ValidateAddress(strings.Repeat("é", 10), 10); err != nil {
		t.Errorf("10 runes at max 10: error = %v", err)
	}
	_, err := ValidateAddress(strings.Repeat("a", 11), 10)
	if !errors.Is(err, ErrAddressTooLong) {
		t.Errorf("11 runes at max 10: error = %v, want ErrAddressTooLong", err)
	}
	if msg := Message(err); msg != "Address is too long." {
		t.Errorf("Message() = %q", msg)
	}
	if _, err := ValidateAddress(strings.Repeat("a", 5000), 0); err != nil {
		t.Errorf("maxLen 0 should disable the limit: error = %v", err)
	}
}

func TestValidateAddress_ControlCharacters(t *testing.T) {
	_, err := ValidateAddress("New\x00York", 100)
	if !errors.Is(err, ErrAddressInvalid) {
		t.Errorf("error = %v, want ErrAddressInvalid", err)
	}
}
