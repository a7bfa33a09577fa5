/*
Package req provides helpers for HTTP request parsing, validation and data binding.

It decodes JSON and multipart bodies with size limits, and validates bound structs with
go-playground/validator, turning failures into per-field messages keyed by JSON name.
*/
package req

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"sims/internal/pkg/errs"
)

const (
	// MaxFormMemory is the memory ParseMultipartForm may use for non-file fields.
	MaxFormMemory int64 = 8 << 20 // 8 MB

	// MaxRequestFileSize caps the whole multipart request body, files included.
	MaxRequestFileSize int64 = 10 << 20 // 10 MB

	// MaxJSONBodySize caps JSON request bodies.
	MaxJSONBodySize int64 = 1 << 20 // 1 MB
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// BindJSON decodes the JSON request body into dst. Unknown fields and trailing data are rejected.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// Bind decodes the JSON body into dst and validates it.
func Bind(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	if customErr := BindJSON(w, r, dst); customErr != nil {
		return customErr
	}
	return Validate(dst)
}

// Validate runs struct validation on v and returns ErrInvalidParams with per-field messages.
func Validate(v any) *errs.CustomError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.NewError(errs.ErrInvalidParams)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return errs.NewError(errs.ErrInvalidParams).WithFields(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Please enter a valid email"
	case "url":
		return "Please enter a valid URL"
	case "eqfield":
		return "Values don't match"
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "gte", "lte", "gt", "lt":
		return fmt.Sprintf("Out of range (%s %s)", fe.Tag(), fe.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", fe.Param())
	case "numeric":
		return "Must contain digits only"
	case "datetime":
		return fmt.Sprintf("Must be a date in the form %s", fe.Param())
	case "ltefield":
		return "Value is too large"
	default:
		return "Invalid value"
	}
}

// SetupMultipart parses a multipart form body with MaxRequestFileSize as the hard cap.
func SetupMultipart(w http.ResponseWriter, r *http.Request) *errs.CustomError {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestFileSize)

	err := r.ParseMultipartForm(MaxFormMemory)

	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}

		return errs.NewError(errs.ErrFormParseFailed)
	}

	return nil
}
