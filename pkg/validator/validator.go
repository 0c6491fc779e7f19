package validator

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates a struct by its `validate` tags.
func Struct(obj interface{}) error {
	if err := validate.Struct(obj); err != nil {
		var verrs validator.ValidationErrors
		if ok := AsValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed on the %s rule", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

// AsValidationErrors unwraps validator.ValidationErrors if present.
func AsValidationErrors(err error, target *validator.ValidationErrors) bool {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		*target = verrs
		return true
	}
	return false
}

// Coordinates reports whether lat/lng form a finite point on the globe.
func Coordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return fmt.Errorf("coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range", lng)
	}
	return nil
}
