package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/services"
)

type CatalogHandler struct {
	log     *logger.Logger
	catalog services.CatalogService
}

func NewCatalogHandler(log *logger.Logger, catalog services.CatalogService) *CatalogHandler {
	return &CatalogHandler{log: log.With("handler", "CatalogHandler"), catalog: catalog}
}

// Search returns the mirrored catalog rows for one syllabus.
func (h *CatalogHandler) Search(c *gin.Context) {
	v := c.Query("syllabus_event_id")
	if v == "" {
		respondError(c, apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument, "syllabus_event_id required"))
		return
	}
	syllabusEventID, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		respondError(c, apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument, "syllabus_event_id must be numeric"))
		return
	}

	entries, err := h.catalog.Entries(c.Request.Context(), syllabusEventID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", gin.H{"entries": entries})
}

// Refresh re-mirrors the upstream catalog into the local cache.
func (h *CatalogHandler) Refresh(c *gin.Context) {
	rows, err := h.catalog.Refresh(c.Request.Context())
	if err != nil {
		h.log.Error("Catalog refresh failed", "error", err)
		respondError(c, err)
		return
	}
	respondOK(c, "catalog refreshed", gin.H{"rows": rows})
}
