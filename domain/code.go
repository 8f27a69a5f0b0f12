package domain

import (
	"regexp"
	"strings"

	"github.com/guestwifi/guestgate/errors"
)

// CodeType classifies a guest-supplied authorization code.
type CodeType string

const (
	CodeTypeVoucher CodeType = "voucher"
	CodeTypeBooking CodeType = "booking"
	CodeTypeInvalid CodeType = "invalid"
)

var (
	alphanumericRe = regexp.MustCompile(`^[A-Za-z0-9]{4,24}$`)
	numericCodeRe  = regexp.MustCompile(`^\d{4,}$`)
)

// maxSlotNameLength bounds free-text booking identifiers.
const maxSlotNameLength = 128

// CodeValidation carries a classified code in both its normalized and
// original form. Voucher codes normalize to upper case; booking codes keep
// their case for faithful matching against stored identifiers.
type CodeValidation struct {
	Type       CodeType
	Normalized string
	Original   string
}

// DetectCodeType decides whether a user-supplied string is a voucher code, a
// booking code, or invalid. Purely alphanumeric input of voucher length is a
// voucher unless it is all digits (a booking slot code); anything else
// non-empty up to the slot-name bound is treated as a booking slot name.
func DetectCodeType(code string) CodeType {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > maxSlotNameLength {
		return CodeTypeInvalid
	}
	if numericCodeRe.MatchString(code) {
		return CodeTypeBooking
	}
	if alphanumericRe.MatchString(code) {
		return CodeTypeVoucher
	}
	return CodeTypeBooking
}

// ClassifyCode validates and normalizes an authorization code.
func ClassifyCode(code string) (CodeValidation, error) {
	codeType := DetectCodeType(code)
	if codeType == CodeTypeInvalid {
		return CodeValidation{}, errors.NewValidation("invalid authorization code")
	}

	normalized := strings.TrimSpace(code)
	if codeType == CodeTypeVoucher {
		normalized = strings.ToUpper(normalized)
	}

	return CodeValidation{
		Type:       codeType,
		Normalized: normalized,
		Original:   code,
	}, nil
}
