package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/humanplus/posture-console/internal/model"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) String() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

var errorMessages = map[string]string{
	"required":      "Field is required",
	"email":         "Invalid email format",
	"min":           "Value is too short",
	"max":           "Value is too long",
	"oneof":         "Value is not allowed",
	"consent":       "Privacy consent is required",
	"analysis_type": "Unknown analysis type",
}

var registerOnce sync.Once

// RegisterValidators installs the console's custom binding tags on gin's
// validator and reports field names by their JSON name.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected binding validator engine")
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		if err = v.RegisterValidation("consent", validateConsent); err != nil {
			return
		}
		err = v.RegisterValidation("analysis_type", validateAnalysisType)
	})
	return err
}

// validateConsent accepts only a true boolean.
func validateConsent(fl validator.FieldLevel) bool {
	f := fl.Field()
	return f.Kind() == reflect.Bool && f.Bool()
}

func validateAnalysisType(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.String {
		return false
	}
	return model.AnalysisType(f.String()).Valid()
}

// ValidationErrorsOf flattens validator errors found in err's chain.
func ValidationErrorsOf(err error) ValidationErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, e := range verrs {
		msg := errorMessages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out
}
