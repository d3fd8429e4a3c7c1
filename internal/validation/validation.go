package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	ErrAddressBlank   = errors.New("address is blank")
	ErrAddressTooLong = errors.New("address too long")
	ErrAddressInvalid = errors.New("address contains invalid characters")
)

// Alert text shown to the user for each validation error.
const (
	MsgAddressBlank   = "Please enter an address."
	MsgAddressTooLong = "Address is too long."
	MsgAddressInvalid = "Address contains invalid characters."
)

// Message returns the alert text for a ValidateAddress error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrAddressBlank):
		return MsgAddressBlank
	case errors.Is(err, ErrAddressTooLong):
		return MsgAddressTooLong
	default:
		return MsgAddressInvalid
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Tabs and newlines are allowed; they collapse into the cache key.
	_ = v.RegisterValidation("noctrl", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if unicode.IsControl(r) && !unicode.IsSpace(r) {
				return false
			}
		}
		return true
	})
	return v
}

// ValidateAddress trims input and checks it is non-blank, at most maxLen runes
// (0 disables the limit) and free of control characters. Returns the trimmed address.
// The trimmed value is only used for validation; callers keep the raw address for
// display and cache-key derivation.
func ValidateAddress(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	if err := validate.Var(s, "required"); err != nil {
		return "", ErrAddressBlank
	}
	if maxLen > 0 {
		if err := validate.Var(s, fmt.Sprintf("max=%d", maxLen)); err != nil {
			return "", ErrAddressTooLong
		}
	}
	if err := validate.Var(s, "noctrl"); err != nil {
		return "", ErrAddressInvalid
	}
	return s, nil
}

// IsBlank reports whether address is empty or whitespace-only.
func IsBlank(address string) bool {
	return strings.TrimSpace(address) == ""
}
