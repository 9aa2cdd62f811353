package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zynx-ai/backend/internal/contextkeys"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/internal/service"
)

// ChatHandler handles chat HTTP endpoints.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Send handles POST /api/chat.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)

	var req domain.ChatRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.chat.Send(r.Context(), userID, &req)
	if err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, resp)
}

// History handles GET /api/chat/history.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	resp, err := h.chat.History(r.Context(), userID, limit, offset)
	if err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/chat/{id}.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)
	messageID := chi.URLParam(r, "id")

	if err := h.chat.Delete(r.Context(), userID, messageID); err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

// Clear handles DELETE /api/chat.
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)

	if err := h.chat.Clear(r.Context(), userID); err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, map[string]string{"message": "chat history cleared"})
}

// Export handles GET /api/chat/export.
func (h *ChatHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)
	q := r.URL.Query()

	format := q.Get("format")
	var start, end time.Time
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			Error(w, domain.ErrBadRequest("invalid start time"))
			return
		}
		start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			Error(w, domain.ErrBadRequest("invalid end time"))
			return
		}
		end = t
	}

	data, contentType, err := h.chat.Export(r.Context(), userID, format, start, end)
	if err != nil {
		Error(w, err)
		return
	}

	ext := format
	if ext == "" {
		ext = "json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=chat-export.%s", ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
