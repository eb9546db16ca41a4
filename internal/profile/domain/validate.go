package domain

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/FreddRva/posoqo-checkout/internal/document"
)

// FieldError is a single inline form error, keyed by the wire name of the
// offending field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field failure of one submission. It is
// resolved locally and never reaches the network.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "profile validation failed: " + strings.Join(parts, "; ")
}

// NewValidator builds the validator shared by every profile save. Field
// names in errors use the json tag so they match what the client sent.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateForm applies the struct constraints and then the document
// checksum rules. It returns a *ValidationError or nil.
func ValidateForm(v *validator.Validate, f Form) error {
	var fields []FieldError

	if err := v.Struct(f); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}

	if document.Known(f.DocumentType) && !document.Validate(f.DocumentType, f.DocumentNumber) {
		fields = append(fields, FieldError{
			Field:   "document_number",
			Message: fmt.Sprintf("not a valid %s number", f.DocumentType),
		})
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "alphaunicode":
		return "must contain letters only"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
