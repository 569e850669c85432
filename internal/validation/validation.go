// Package validation holds the shared validator instance.
package validation

import (
	"errors"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the process-wide validator. decimal.Decimal fields are
// compared as float64 so numeric tags like gt=0 apply to them.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if v, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := v.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
	})
	return validate
}

func Struct(v any) error { return Validator().Struct(v) }

// Fields flattens validation errors into namespace -> failed tag. Any other
// error yields nil.
func Fields(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}
