package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/services"
	"github.com/mentorium/backend/internal/types"
)

type ResourceHandler struct {
	log    *logger.Logger
	ingest services.IngestService
}

func NewResourceHandler(log *logger.Logger, ingest services.IngestService) *ResourceHandler {
	return &ResourceHandler{log: log.With("handler", "ResourceHandler"), ingest: ingest}
}

// Add runs the full ingestion pipeline for one catalog resource. Duplicate
// content and unsupported formats are success outcomes with distinct
// statuses, not errors.
func (h *ResourceHandler) Add(c *gin.Context) {
	var req types.ResourceDescriptor
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.New(http.StatusBadRequest, apierr.CodeInvalidArgument, err))
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), req)
	if err != nil {
		h.log.Error("Resource ingest failed", "resource_id", req.ResourceID, "error", err)
		respondError(c, err)
		return
	}
	respondOK(c, "resource processed", result)
}

type deleteResourceRequest struct {
	ResourceID string `json:"resource_id" binding:"required"`
}

// Delete removes a resource end to end. An unknown id returns 200 with a
// "nothing to remove" message; removal is idempotent from the caller's view.
func (h *ResourceHandler) Delete(c *gin.Context) {
	var req deleteResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.New(http.StatusBadRequest, apierr.CodeInvalidArgument, err))
		return
	}

	res, err := h.ingest.Remove(c.Request.Context(), req.ResourceID)
	if err != nil {
		if apierr.IsCode(err, apierr.CodeNotFound) {
			respondOK(c, "nothing to remove", nil)
			return
		}
		h.log.Error("Resource removal failed", "resource_id", req.ResourceID, "error", err)
		respondError(c, err)
		return
	}
	respondOK(c, "resource removed", gin.H{
		"resource_id":     res.ResourceID,
		"vectors_deleted": len(res.VectorIDs),
	})
}
