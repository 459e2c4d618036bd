package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// ValidateEmail / ValidatePhoneNumber / ValidateAccount
// ---------------------------------------------------------------------------

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		expect bool
	}{
		{"valid simple", "farmer@example.com", true},
		{"valid with plus", "user+tag@example.ph", true},
		{"valid subdomain", "user@mail.philrice.gov.ph", true},
		{"empty string", "", false},
		{"whitespace only", "   ", false},
		{"missing at sign", "userexample.com", false},
		{"missing domain", "user@", false},
		{"no TLD", "user@example", false},
		{"with leading space trimmed", " user@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ValidateEmail(tt.email))
		})
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	tests := []struct {
		name   string
		phone  string
		expect bool
	}{
		{"philippine mobile", "+639171234567", true},
		{"without plus", "639171234567", true},
		{"leading zero", "09171234567", false},
		{"too long", "+1234567890123456", false},
		{"letters", "+63917abc4567", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ValidatePhoneNumber(tt.phone))
		})
	}
}

func TestValidateAccount(t *testing.T) {
	assert.True(t, ValidateAccount("+639171234567"))
	assert.True(t, ValidateAccount("farmer@example.com"))
	assert.False(t, ValidateAccount("juan"))
	assert.False(t, ValidateAccount(""))
}

// ---------------------------------------------------------------------------
// ValidateCoordinates
// ---------------------------------------------------------------------------

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(15.7155, 120.9037))
	assert.NoError(t, ValidateCoordinates(-90, 180))
	assert.Error(t, ValidateCoordinates(90.1, 0))
	assert.Error(t, ValidateCoordinates(0, -180.5))
}

// ---------------------------------------------------------------------------
// ValidationError methods
// ---------------------------------------------------------------------------

func TestValidationError_ErrorIsSortedByField(t *testing.T) {
	ve := &ValidationError{
		Errors: map[string]string{
			"name":  "is required",
			"email": "is required",
		},
	}

	assert.Equal(t, "validation failed: email: is required; name: is required", ve.Error())
}

func TestValidationError_AddError_NilMap(t *testing.T) {
	ve := &ValidationError{}
	assert.False(t, ve.HasErrors())

	ve.AddError("field", "message")

	assert.True(t, ve.HasErrors())
	msg, exists := ve.GetFieldError("field")
	assert.True(t, exists)
	assert.Equal(t, "message", msg)

	_, exists = ve.GetFieldError("missing")
	assert.False(t, exists)
}

// ---------------------------------------------------------------------------
// ValidateStruct
// ---------------------------------------------------------------------------

type testStore struct {
	ID        string  `validate:"required"`
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
	Phone     string  `validate:"omitempty,phone"`
	Role      string  `validate:"omitempty,user_role"`
	Account   string  `validate:"omitempty,account"`
	Rating    float64 `validate:"gte=0,lte=5"`
}

func TestValidateStruct_Valid(t *testing.T) {
	s := testStore{
		ID:        "store-1",
		Latitude:  15.7,
		Longitude: 120.9,
		Phone:     "+639171234567",
		Role:      "Farmer",
		Account:   "farmer@example.com",
		Rating:    4.5,
	}
	assert.NoError(t, ValidateStruct(&s))
}

func TestValidateStruct_CollectsFieldErrors(t *testing.T) {
	s := testStore{
		Latitude:  120,
		Longitude: 200,
		Phone:     "0917",
		Role:      "driver",
		Account:   "nobody",
		Rating:    7,
	}

	err := ValidateStruct(&s)
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))

	expected := map[string]string{
		"testStore.ID":        "is required",
		"testStore.Latitude":  "must be between -90 and 90",
		"testStore.Longitude": "must be between -180 and 180",
		"testStore.Phone":     "must be an E.164 phone number",
		"testStore.Role":      "must be farmer or admin",
		"testStore.Account":   "must be an E.164 phone number or an email address",
		"testStore.Rating":    "failed lte=5",
	}
	assert.Equal(t, expected, vErr.Errors)
}

func TestValidateStruct_NonStruct(t *testing.T) {
	err := ValidateStruct("not a struct")
	require.Error(t, err)

	var vErr *ValidationError
	assert.False(t, errors.As(err, &vErr))
}
