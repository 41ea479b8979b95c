package graph

import (
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// JSON numbers can't carry NaN/Inf, but the contract says finite,
	// so the schema states it rather than relying on the codec.
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})

	return v
}

// Validate checks a payload struct against its declarative schema tags.
// It is the single validation entry point; handlers drop the operation
// on any error without touching the store.
func Validate(v any) error {
	return validate.Struct(v)
}
