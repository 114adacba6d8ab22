package drafts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bills-backend/internal/oms"
	"bills-backend/internal/shared/server/middleware"
	"bills-backend/internal/shared/server/respond"
)

// Handler wires the draft workflow endpoints to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches draft routes to the router group. The :id
// parameter is always a page document id.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/drafts", h.list)
	rg.POST("/drafts/:id/confirm-po", h.confirm)
	rg.GET("/drafts/:id/match-items", h.matchItems)
	rg.POST("/drafts/:id/save", h.save)
	rg.GET("/drafts/:id/final", h.final)
}

type confirmRequest struct {
	PONumber string `json:"poNumber"`
}

func (h *Handler) confirm(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	docID := c.Param("id")
	c.Set("documentId", docID)

	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	result, err := h.Svc.Confirm(c.Request.Context(), userID, docID, req.PONumber)
	if err != nil {
		h.respondError(c, err, "failed to confirm purchase order")
		return
	}
	respond.JSON(c, http.StatusOK, result)
}

func (h *Handler) matchItems(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	docID := c.Param("id")
	c.Set("documentId", docID)

	result, err := h.Svc.MatchItems(c.Request.Context(), userID, docID)
	if err != nil {
		h.respondError(c, err, "failed to match items")
		return
	}
	respond.JSON(c, http.StatusOK, result)
}

type saveRequest struct {
	Items []Selection `json:"items"`
}

func (h *Handler) save(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	docID := c.Param("id")
	c.Set("documentId", docID)

	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	result, err := h.Svc.Save(c.Request.Context(), userID, docID, req.Items)
	if err != nil {
		h.respondError(c, err, "failed to save draft")
		return
	}
	respond.JSON(c, http.StatusCreated, result)
}

func (h *Handler) final(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	docID := c.Param("id")
	c.Set("documentId", docID)

	result, err := h.Svc.Final(c.Request.Context(), userID, docID)
	if err != nil {
		h.respondError(c, err, "failed to fetch draft")
		return
	}
	respond.JSON(c, http.StatusOK, result)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	bills, err := h.Svc.List(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list drafts", nil)
		return
	}
	if bills == nil {
		bills = []BillSummary{}
	}
	respond.JSON(c, http.StatusOK, gin.H{"drafts": bills})
}

// respondError maps workflow errors onto the API error envelope.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, oms.ErrOrderNotFound):
		respond.Error(c, http.StatusNotFound, "order_not_found", "no order found for that purchase order number", nil)
	case errors.Is(err, ErrSessionExpired):
		respond.Error(c, http.StatusConflict, "session_expired", "draft session expired; confirm the purchase order again", nil)
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, oms.ErrUpstream):
		respond.Error(c, http.StatusBadGateway, "upstream_error", fallback, nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
