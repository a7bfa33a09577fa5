/*
Package errs provides custom error types and application-level error code constants.

This file defines CustomError, which implements the error interface and carries a
business code, a user-facing message, an HTTP status and optional per-field messages.
*/
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"sims/internal/pkg/logx"
)

// CustomError is the error structure returned to portal clients.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-facing error description.
	Message string

	// Status is the HTTP status code sent with this error.
	Status int

	// Fields holds per-field validation messages, keyed by JSON field name.
	Fields map[string]string
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// WithFields returns a copy of e carrying the given field messages.
func (e *CustomError) WithFields(fields map[string]string) *CustomError {
	out := *e
	out.Fields = fields
	return &out
}

// NewError builds a *CustomError from a predefined code.
// details are printf arguments for the message template. For ErrUnknown the first
// detail may be the underlying error, which is logged and never shown to the client.
// Unknown codes fall back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(
				originalErr,
				"Handling ErrUnknown with underlying error",
			)
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code,
			)
		}
	}

	return &customErr
}
