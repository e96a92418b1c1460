package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhoneValidator_Validate(t *testing.T) {
	v := NewPhoneValidator()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"national", "71234567", "+26771234567", nil},
		{"with country code", "+267 71 234 567", "+26771234567", nil},
		{"with international prefix", "00267-76-123-456", "+26776123456", nil},
		{"empty", "  ", "", ErrEmptyPhone},
		{"letters", "71abc567", "", ErrInvalidFormat},
		{"too short", "7123456", "", ErrInvalidLength},
		{"landline", "39512345", "", ErrInvalidPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneValidator_Format(t *testing.T) {
	v := NewPhoneValidator()

	formatted, err := v.Format("71234567")
	assert.NoError(t, err)
	assert.Equal(t, "+267 71 234 567", formatted)

	assert.False(t, v.IsValid("0771234567"))
}
