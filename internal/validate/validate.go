package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom registrations must be
// made during init() before the first call to Struct.
var v = validator.New()

func init() {
	// Validate against json field names so error output matches the wire.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldErrors maps request field names to human-readable failure messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	var msgs []string
	for field, msg := range fe {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, msg))
	}
	return strings.Join(msgs, "; ")
}

// Struct validates s against its validate tags. A validation failure is
// returned as FieldErrors so handlers can render per-field detail.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make(FieldErrors, len(ve))
	for _, f := range ve {
		fields[f.Field()] = message(f)
	}
	return fields
}

func message(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "e164":
		return "must be a valid phone number in E.164 format"
	case "min":
		return fmt.Sprintf("must be at least %s characters", f.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", f.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", f.Param())
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", f.Param())
	default:
		return fmt.Sprintf("failed %s validation", f.Tag())
	}
}
