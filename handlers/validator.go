package handlers

import (
	"reflect"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// Teach the validator to see decimal.Decimal as a number so that
		// binding tags like "required" reject zero quantities and prices.
		v.RegisterCustomTypeFunc(decimalValuer, decimal.Decimal{})
	}
}

func decimalValuer(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}
