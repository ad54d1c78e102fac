package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/services"
)

type ChatHandler struct {
	log     *logger.Logger
	chat    services.ChatService
	history services.HistoryService
}

func NewChatHandler(log *logger.Logger, chat services.ChatService, history services.HistoryService) *ChatHandler {
	return &ChatHandler{
		log:     log.With("handler", "ChatHandler"),
		chat:    chat,
		history: history,
	}
}

func (h *ChatHandler) Ask(c *gin.Context) {
	var req services.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.New(http.StatusBadRequest, apierr.CodeInvalidArgument, err))
		return
	}

	answer, err := h.chat.Ask(c.Request.Context(), req)
	if err != nil {
		h.log.Error("Ask failed", "user_id", req.UserID, "error", err)
		respondError(c, err)
		return
	}
	respondOK(c, "", gin.H{"answer": answer})
}

func historyScope(c *gin.Context) (string, int64, error) {
	userID := c.Query("user_id")
	if userID == "" {
		return "", 0, apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument, "user_id required")
	}
	var syllabusEventID int64
	if v := c.Query("syllabus_event_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", 0, apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument, "syllabus_event_id must be numeric")
		}
		syllabusEventID = parsed
	}
	return userID, syllabusEventID, nil
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, syllabusEventID, err := historyScope(c)
	if err != nil {
		respondError(c, err)
		return
	}

	turns, err := h.history.History(c.Request.Context(), userID, syllabusEventID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", gin.H{"history": turns})
}

type deleteHistoryRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	SyllabusEventID int64  `json:"syllabus_event_id"`
}

func (h *ChatHandler) DeleteHistory(c *gin.Context) {
	var req deleteHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.New(http.StatusBadRequest, apierr.CodeInvalidArgument, err))
		return
	}

	if err := h.history.Delete(c.Request.Context(), req.UserID, req.SyllabusEventID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "history deleted", nil)
}
