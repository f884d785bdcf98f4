package httpapi

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"inventario/pkg/domain"
)

// Validator adapts validator.Validate to echo.Validator.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a validator with the inventory tags registered:
// "category" and "status" accept the enumerated values only.
func NewValidator() (*Validator, error) {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	if err := v.RegisterValidation("category", isCategory); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("status", isStatus); err != nil {
		return nil, err
	}
	return &Validator{validate: v}, nil
}

// Validate checks struct tags on i.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

func isCategory(fl validator.FieldLevel) bool {
	return domain.Category(fl.Field().String()).Valid()
}

func isStatus(fl validator.FieldLevel) bool {
	return domain.Status(fl.Field().String()).Valid()
}

// jsonName reports fields by their wire name.
func jsonName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
