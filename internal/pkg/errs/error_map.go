/*
Package errs provides custom error types and application-level error code constants.

This file maps error codes to their CustomError templates.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrNotFound:              {Code: ErrNotFound, Message: "Page not found.", Status: http.StatusNotFound},

	// 2xxx: Content Business Logic Errors
	ErrArticleNotFound:        {Code: ErrArticleNotFound, Message: "Article not found.", Status: http.StatusNotFound},
	ErrArticleSlugExists:      {Code: ErrArticleSlugExists, Message: "An article with a similar title already exists.", Status: http.StatusConflict},
	ErrResultNotFound:         {Code: ErrResultNotFound, Message: "Result not found.", Status: http.StatusNotFound},
	ErrAdmissionNotFound:      {Code: ErrAdmissionNotFound, Message: "Application not found.", Status: http.StatusNotFound},
	ErrAdmissionStatusInvalid: {Code: ErrAdmissionStatusInvalid, Message: "Invalid application status: %s.", Status: http.StatusBadRequest},
	ErrFileTypeInvalid:        {Code: ErrFileTypeInvalid, Message: "Only JPEG, PNG and WebP images are accepted.", Status: http.StatusBadRequest},
	ErrFileSizeTooLarge:       {Code: ErrFileSizeTooLarge, Message: "File is too large.", Status: http.StatusBadRequest},
	ErrMediaDisabled:          {Code: ErrMediaDisabled, Message: "Media storage is not available.", Status: http.StatusServiceUnavailable},

	// 3xxx: User, Session, and Security Errors
	ErrPowChallengeRequired: {Code: ErrPowChallengeRequired, Message: "Verification required. Please try again.", Status: http.StatusBadRequest},
	ErrPowChallengeInvalid:  {Code: ErrPowChallengeInvalid, Message: "Verification failed. Please try again.", Status: http.StatusBadRequest},
	ErrUnauthorized:         {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrForbidden:            {Code: ErrForbidden, Message: "You do not have access to this page.", Status: http.StatusForbidden},
	ErrInvalidCredentials:   {Code: ErrInvalidCredentials, Message: "%s", Status: http.StatusUnauthorized},
	ErrSignUpFailed:         {Code: ErrSignUpFailed, Message: "%s", Status: http.StatusBadRequest},
	ErrSessionLoading:       {Code: ErrSessionLoading, Message: "Loading...", Status: http.StatusServiceUnavailable},
	ErrAuthUnavailable:      {Code: ErrAuthUnavailable, Message: "The sign-in service is not responding. Please try again.", Status: http.StatusGatewayTimeout},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusBadGateway},
}
