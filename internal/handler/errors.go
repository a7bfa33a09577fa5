package handler

import (
	"errors"
	"net/http"
	"strings"

	"sims/internal/app/admissions"
	"sims/internal/app/backend"
	"sims/internal/app/news"
	"sims/internal/app/results"
	"sims/internal/app/storage"
	"sims/internal/pkg/errs"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/resp"
)

// serviceError maps a feature service error to the client-facing error.
// Errors without a mapping are logged and reported as ErrUnknown.
func serviceError(err error, op string) *errs.CustomError {
	var fieldErr *admissions.FieldError

	switch {
	case errors.Is(err, news.ErrNotFound):
		return errs.NewError(errs.ErrArticleNotFound)
	case errors.Is(err, news.ErrSlugTaken):
		return errs.NewError(errs.ErrArticleSlugExists)
	case errors.Is(err, results.ErrNotFound):
		return errs.NewError(errs.ErrResultNotFound)
	case errors.Is(err, admissions.ErrNotFound):
		return errs.NewError(errs.ErrAdmissionNotFound)
	case errors.Is(err, admissions.ErrInvalidStatus):
		return errs.NewError(errs.ErrAdmissionStatusInvalid, "expected one of "+strings.Join(admissions.Statuses, ", "))
	case errors.As(err, &fieldErr):
		return errs.NewError(errs.ErrInvalidParams).WithFields(map[string]string{fieldErr.Field: fieldErr.Message})
	case errors.Is(err, storage.ErrFileType):
		return errs.NewError(errs.ErrFileTypeInvalid)
	case errors.Is(err, storage.ErrFileSize):
		return errs.NewError(errs.ErrFileSizeTooLarge)
	case errors.Is(err, storage.ErrKey):
		return errs.NewError(errs.ErrNotFound)
	}

	logx.Error(err, "Service call failed", "op", op)
	return errs.NewError(errs.ErrUnknown)
}

// authError maps a failed backend call. Refusals carry the backend's reason.
func authError(err error, code int) *errs.CustomError {
	if backend.IsRejected(err) {
		return errs.NewError(code, backend.Reason(err))
	}
	logx.Warn("Auth service call failed", "error", err)
	return errs.NewError(errs.ErrAuthUnavailable)
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	resp.RespondError(w, r, serviceError(err, op))
}
