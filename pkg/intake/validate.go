package intake

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"

	"github.com/jordanlanch/leadintake/pkg/models"
)

// newValidator builds the draft validator. Field names in error messages
// come from the json tags so they match what the client sent. The mobile
// rule parses against the configured default region.
func newValidator(defaultRegion string) *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		parsed, err := phonenumbers.Parse(fl.Field().String(), defaultRegion)
		if err != nil {
			return false
		}
		return phonenumbers.IsValidNumber(parsed)
	})

	return v
}

// validateDraft runs schema validation and flattens the result into
// per-field messages
func validateDraft(v *validator.Validate, d models.LeadDraft) *ValidationError {
	err := v.Struct(d)
	if err == nil {
		return nil
	}

	fields := map[string]string{}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		for _, fe := range invalid {
			fields[fe.Field()] = fieldMessage(fe)
		}
	} else {
		fields["_"] = err.Error()
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "mobile":
		return "Enter a valid mobile number"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("Invalid value (%s)", fe.Tag())
	}
}
