package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates the national number is not 8 digits
	ErrInvalidLength = errors.New("phone number must have 8 digits after the +267 country code")

	// ErrInvalidPrefix indicates the number is not a Botswana mobile number
	ErrInvalidPrefix = errors.New("phone number must be a mobile number starting with 71-77")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")
)

const countryCode = "267"

// validPrefixes contains the Botswana mobile ranges
var validPrefixes = []string{
	"71", // Mascom
	"72", // Orange
	"73", // BTC
	"74", // Mascom
	"75", // Orange
	"76", // Mascom
	"77", // Orange
}

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator handles phone number validation
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates a Botswana mobile number
// Accepts: 71234567, +267 71234567, 267-71-234-567
// Returns the number in E.164 form (+26771234567)
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if len(sanitized) != 8 {
		return "", ErrInvalidLength
	}

	if !v.IsValidPrefix(sanitized) {
		return "", ErrInvalidPrefix
	}

	return "+" + countryCode + sanitized, nil
}

// Sanitize strips separators and the country code, leaving the national number
func (v *PhoneValidator) Sanitize(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")
	phone = replacer.Replace(phone)

	if strings.HasPrefix(phone, "00"+countryCode) {
		phone = strings.TrimPrefix(phone, "00")
	}
	if strings.HasPrefix(phone, countryCode) && len(phone) == len(countryCode)+8 {
		phone = phone[len(countryCode):]
	}

	return phone
}

// IsValidPrefix checks the national number against the mobile ranges
func (v *PhoneValidator) IsValidPrefix(phone string) bool {
	if len(phone) < 2 {
		return false
	}

	prefix := phone[:2]
	for _, validPrefix := range validPrefixes {
		if prefix == validPrefix {
			return true
		}
	}

	return false
}

// Format formats a phone number for display: +267 71 234 567
func (v *PhoneValidator) Format(phone string) (string, error) {
	normalized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}

	national := normalized[len(countryCode)+1:]
	return fmt.Sprintf("+%s %s %s %s", countryCode, national[0:2], national[2:5], national[5:8]), nil
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
