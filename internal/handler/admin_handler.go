package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sims/internal/app/admissions"
	"sims/internal/app/news"
	"sims/internal/app/storage"
	"sims/internal/pkg/errs"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/req"
	"sims/internal/pkg/resp"
)

// GalleryFileField is the multipart field carrying a gallery upload.
const GalleryFileField = "file"

type CoverPresignInput struct {
	MimeType string `json:"mime_type" validate:"required"`
	FileSize int64  `json:"file_size" validate:"gt=0"`
}

// HandleAdminListNews returns a page of all articles, drafts included.
func HandleAdminListNews(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := deps.News.ListAll(r.Context(), newsQuery(r))
		if err != nil {
			respondServiceError(w, r, err, "news.list_all")
			return
		}
		respondDashboard(w, r, map[string]any{
			"categories": news.Categories,
			"page":       page,
		})
	}
}

// HandleAdminGetNews returns one article by id.
func HandleAdminGetNews(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		article, err := deps.News.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, err, "news.get")
			return
		}
		resp.RespondSuccess(w, r, article)
	}
}

// HandleCreateNews creates an article authored by the signed-in admin.
func HandleCreateNews(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input news.Input
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		article, err := deps.News.Create(r.Context(), input, currentUserID(r))
		if err != nil {
			respondServiceError(w, r, err, "news.create")
			return
		}
		resp.RespondCreated(w, r, article)
	}
}

// HandleUpdateNews replaces an article.
func HandleUpdateNews(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input news.Input
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		article, err := deps.News.Update(r.Context(), chi.URLParam(r, "id"), input)
		if err != nil {
			respondServiceError(w, r, err, "news.update")
			return
		}
		resp.RespondSuccess(w, r, article)
	}
}

// HandleTogglePublished flips the published flag of an article.
func HandleTogglePublished(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		published, err := deps.News.TogglePublished(r.Context(), id)
		if err != nil {
			respondServiceError(w, r, err, "news.toggle_published")
			return
		}
		resp.RespondSuccess(w, r, map[string]any{"id": id, "is_published": published})
	}
}

// HandleToggleFeatured flips the featured flag of an article.
func HandleToggleFeatured(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		featured, err := deps.News.ToggleFeatured(r.Context(), id)
		if err != nil {
			respondServiceError(w, r, err, "news.toggle_featured")
			return
		}
		resp.RespondSuccess(w, r, map[string]any{"id": id, "is_featured": featured})
	}
}

// HandleDeleteNews removes an article.
func HandleDeleteNews(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.News.Delete(r.Context(), id); err != nil {
			respondServiceError(w, r, err, "news.delete")
			return
		}

		logx.Info("Article deleted", "article_id", id, "by", currentUserID(r))
		resp.RespondSuccess(w, r, map[string]any{"id": id})
	}
}

// HandlePresignCover returns an upload URL for a news cover image.
func HandlePresignCover(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Media == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaDisabled))
			return
		}

		var input CoverPresignInput
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		upload, err := deps.Media.PresignCover(r.Context(), input.MimeType, input.FileSize)
		if err != nil {
			respondMediaError(w, r, err, "media.presign_cover")
			return
		}
		resp.RespondSuccess(w, r, upload)
	}
}

// HandleListAdmissions returns applications, optionally filtered by ?status=.
func HandleListAdmissions(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		limit := queryInt(r, "limit", admissions.DefaultListLimit)
		offset := queryInt(r, "offset", 0)

		list, err := deps.Admissions.List(r.Context(), status, limit, offset)
		if err != nil {
			respondServiceError(w, r, err, "admissions.list")
			return
		}

		total, err := deps.Admissions.Count(r.Context(), status)
		if err != nil {
			respondServiceError(w, r, err, "admissions.count")
			return
		}

		respondDashboard(w, r, map[string]any{
			"statuses":   admissions.Statuses,
			"admissions": list,
			"total":      total,
		})
	}
}

// HandleGetAdmission returns one application.
func HandleGetAdmission(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := deps.Admissions.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, err, "admissions.get")
			return
		}
		resp.RespondSuccess(w, r, a)
	}
}

// HandleReviewAdmission records the signed-in admin's decision on an application.
func HandleReviewAdmission(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input admissions.Review
		if customErr := req.Bind(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		a, err := deps.Admissions.Review(r.Context(), chi.URLParam(r, "id"), input, currentUserID(r))
		if err != nil {
			respondServiceError(w, r, err, "admissions.review")
			return
		}
		resp.RespondSuccess(w, r, a)
	}
}

// HandleAdminGallery lists the gallery photos for management.
func HandleAdminGallery(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Media == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaDisabled))
			return
		}

		images, err := deps.Media.Gallery(r.Context())
		if err != nil {
			respondMediaError(w, r, err, "media.gallery")
			return
		}
		respondDashboard(w, r, map[string]any{"images": images})
	}
}

// HandleUploadGallery stores a gallery photo sent as multipart form data.
func HandleUploadGallery(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Media == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaDisabled))
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		file, header, err := r.FormFile(GalleryFileField)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams).WithFields(map[string]string{GalleryFileField: "This field is required"}))
			return
		}
		defer file.Close()

		image, err := deps.Media.UploadGallery(r.Context(), header.Header.Get("Content-Type"), header.Size, file)
		if err != nil {
			respondMediaError(w, r, err, "media.upload_gallery")
			return
		}

		logx.Info("Gallery image uploaded", "key", image.Key, "size", image.Size, "by", currentUserID(r))
		resp.RespondCreated(w, r, image)
	}
}

// HandleDeleteGallery removes the gallery photo named in the path.
func HandleDeleteGallery(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Media == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaDisabled))
			return
		}

		key := storage.GalleryPrefix + "/" + chi.URLParam(r, "name")
		if err := deps.Media.DeleteGallery(r.Context(), key); err != nil {
			respondMediaError(w, r, err, "media.delete_gallery")
			return
		}

		logx.Info("Gallery image deleted", "key", key, "by", currentUserID(r))
		resp.RespondSuccess(w, r, map[string]any{"key": key})
	}
}

// respondMediaError maps validation errors from storage and reports everything else as a
// storage failure.
func respondMediaError(w http.ResponseWriter, r *http.Request, err error, op string) {
	customErr := serviceError(err, op)
	if customErr.Code == errs.ErrUnknown {
		customErr = errs.NewError(errs.ErrFileStorageFailed)
	}
	resp.RespondError(w, r, customErr)
}
