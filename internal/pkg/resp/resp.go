/*
Package resp provides helpers for sending the portal's standardized JSON responses.

Every response uses the same envelope: a business code (0 on success), a message and
optional data.
*/
package resp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"sims/internal/pkg/errs"
	"sims/internal/pkg/logx"
)

// JSONResponse is the envelope returned to portal clients.
type JSONResponse struct {
	// Code is the business status code (0 for success, see errs package otherwise).
	Code int `json:"code"`

	// Message is the client-facing status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// RespondJSON sets the JSON headers and writes payload with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondSuccess sends a 200 response carrying data.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// RespondCreated sends a 201 response carrying data.
func RespondCreated(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusCreated, JSONResponse{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// RespondError sends customErr. Field messages, when present, are sent as data.fields.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	res := JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	}
	if len(customErr.Fields) > 0 {
		res.Data = map[string]any{"fields": customErr.Fields}
	}
	RespondJSON(w, r, customErr.Status, res)
}

// RespondLoading tells the client the portal session is still settling and when to retry.
func RespondLoading(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	RespondError(w, r, errs.NewError(errs.ErrSessionLoading))
}
