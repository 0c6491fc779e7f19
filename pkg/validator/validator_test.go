package validator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinates(t *testing.T) {
	cases := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"valid", 49.8671, 40.4093, false},
		{"zero island", 0, 0, false},
		{"poles", 90, 180, false},
		{"negative bounds", -90, -180, false},
		{"latitude too high", 90.01, 0, true},
		{"latitude too low", -91, 0, true},
		{"longitude too high", 0, 180.5, true},
		{"longitude too low", 0, -181, true},
		{"nan latitude", math.NaN(), 0, true},
		{"infinite longitude", 0, math.Inf(1), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Coordinates(tc.lat, tc.lng)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStruct(t *testing.T) {
	type payload struct {
		Beds *int `validate:"omitempty,min=0"`
	}

	ok := 3
	assert.NoError(t, Struct(&payload{Beds: &ok}))
	assert.NoError(t, Struct(&payload{}))

	bad := -1
	err := Struct(&payload{Beds: &bad})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min")
}
