package apis

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("http_method", validateHTTPMethod); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("gateway_path", validateGatewayPath); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

var httpMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Custom validator: HTTP method in any case
func validateHTTPMethod(fl validator.FieldLevel) bool {
	return httpMethods[strings.ToUpper(fl.Field().String())]
}

// Custom validator: plain gateway path ("/users") or regex path ("~/users/(?<id>[^/]+)")
func validateGatewayPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return strings.HasPrefix(p, "/") || strings.HasPrefix(p, "~/")
}

// FieldError is one failed input rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a UUID"
	case "http_method":
		return "must be an HTTP method"
	case "gateway_path":
		return "must start with '/' or '~/'"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// Check validates v against its validate tags. Failures are a BadRequest
// about what, carrying []FieldError details.
func Check(v interface{}, what string) error {
	if err := validate.Struct(v); err != nil {
		return apperr.BadRequest("invalid %s", what).WithDetails(fieldErrors(err))
	}
	return nil
}

// fieldErrors converts validator errors into field errors keyed by their
// JSON path, e.g. "upstream.method".
func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		path := e.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		out = append(out, FieldError{Field: path, Message: validationMessage(e)})
	}
	return out
}
