package jobs

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bills-backend/internal/pages"
	"bills-backend/internal/shared/server/middleware"
	"bills-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the jobs service.
type Handler struct {
	Svc       *Service
	Pages     pages.Repo
	MaxUpload int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, pagesRepo pages.Repo, maxUploadBytes int64) *Handler {
	return &Handler{Svc: svc, Pages: pagesRepo, MaxUpload: maxUploadBytes}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs", h.upload)
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/updates", h.updates)
	rg.GET("/jobs/:id", h.get)
	rg.GET("/jobs/:id/documents", h.documents)
}

// RegisterAdminRoutes attaches operator-only routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs/:id/retry", h.retry)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUpload)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Upload(ctx, userID, fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create job", nil)
		}
		return
	}

	c.Set("jobId", job.ID)
	respond.Accepted(c, toResponse(job))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	jobID := c.Param("id")
	c.Set("jobId", jobID)

	job, err := h.Svc.Get(c.Request.Context(), userID, jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(job))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit := clampInt(queryInt(c, "limit", 20), 0, 50)
	offset := clampInt(queryInt(c, "offset", 0), 0, 1<<30)

	list, err := h.Svc.List(c.Request.Context(), userID, c.Query("status"), limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list jobs", nil)
		}
		return
	}

	resp := make([]jobResponse, 0, len(list))
	for _, job := range list {
		resp = append(resp, toResponse(job))
	}
	respond.JSON(c, http.StatusOK, gin.H{"jobs": resp})
}

func (h *Handler) updates(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	since := time.Now().UTC().Add(-5 * time.Minute)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "since must be RFC3339", nil)
			return
		}
		since = parsed
	}
	limit := clampInt(queryInt(c, "limit", 50), 1, 100)

	list, err := h.Svc.Updates(c.Request.Context(), userID, since, limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch updates", nil)
		return
	}

	resp := make([]jobResponse, 0, len(list))
	for _, job := range list {
		resp = append(resp, toResponse(job))
	}
	respond.JSON(c, http.StatusOK, gin.H{"jobs": resp, "asOf": time.Now().UTC()})
}

func (h *Handler) documents(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	jobID := c.Param("id")
	c.Set("jobId", jobID)

	// Ownership check first so another user's job id 404s instead of
	// leaking an empty list.
	if _, err := h.Svc.Get(c.Request.Context(), userID, jobID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		}
		return
	}

	docs, err := h.Pages.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) retry(c *gin.Context) {
	jobID := c.Param("id")
	c.Set("jobId", jobID)

	job, err := h.Svc.Retry(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to retry job", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(job))
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
