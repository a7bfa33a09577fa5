package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sims/internal/app/dashboard"
	"sims/internal/app/results"
	"sims/internal/pkg/errs"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/req"
	"sims/internal/pkg/resp"
)

// semesterParam reads the optional ?semester= filter.
func semesterParam(r *http.Request) (*int, *errs.CustomError) {
	raw := r.URL.Query().Get("semester")
	if raw == "" || raw == "all" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return nil, errs.NewError(errs.ErrInvalidParams).WithFields(map[string]string{"semester": "Must be a semester number"})
	}
	return &n, nil
}

// HandleStudentDashboard returns the signed-in user's results report.
func HandleStudentDashboard(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		semester, customErr := semesterParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		report, err := deps.Results.Report(r.Context(), currentUserID(r), semester)
		if err != nil {
			respondServiceError(w, r, err, "results.report")
			return
		}

		respondDashboard(w, r, map[string]any{"report": report})
	}
}

// HandleFacultyDashboard returns the faculty landing page.
func HandleFacultyDashboard(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondDashboard(w, r, map[string]any{
			"statuses": []string{results.StatusPass, results.StatusFail, results.StatusReappear},
		})
	}
}

// HandleListStudentResults returns the report of the student named by ?student_id=.
func HandleListStudentResults(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := r.URL.Query().Get("student_id")
		if studentID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams).WithFields(map[string]string{"student_id": "This field is required"}))
			return
		}

		semester, customErr := semesterParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		report, err := deps.Results.Report(r.Context(), studentID, semester)
		if err != nil {
			respondServiceError(w, r, err, "results.report")
			return
		}

		respondDashboard(w, r, map[string]any{
			"student_id": studentID,
			"report":     report,
		})
	}
}

// HandleCreateResult records an exam result.
func HandleCreateResult(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input results.Input
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, err := deps.Results.Create(r.Context(), input)
		if err != nil {
			respondServiceError(w, r, err, "results.create")
			return
		}

		logx.Info("Exam result recorded", "result_id", result.ID, "student_id", result.StudentID, "by", currentUserID(r))
		resp.RespondCreated(w, r, result)
	}
}

// HandleGetResult returns one exam result.
func HandleGetResult(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Results.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, err, "results.get")
			return
		}
		resp.RespondSuccess(w, r, result)
	}
}

// HandleUpdateResult replaces an exam result.
func HandleUpdateResult(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input results.Input
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, err := deps.Results.Update(r.Context(), chi.URLParam(r, "id"), input)
		if err != nil {
			respondServiceError(w, r, err, "results.update")
			return
		}
		resp.RespondSuccess(w, r, result)
	}
}

// HandleDeleteResult removes an exam result.
func HandleDeleteResult(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Results.Delete(r.Context(), id); err != nil {
			respondServiceError(w, r, err, "results.delete")
			return
		}

		logx.Info("Exam result deleted", "result_id", id, "by", currentUserID(r))
		resp.RespondSuccess(w, r, map[string]any{"id": id})
	}
}

// HandleAdminDashboard returns the admin overview counters.
func HandleAdminDashboard(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := dashboard.LoadOverview(r.Context(), deps.Overview)
		if err != nil {
			respondServiceError(w, r, err, "dashboard.overview")
			return
		}
		respondDashboard(w, r, map[string]any{"overview": overview})
	}
}
