// Package ws streams chat completions over WebSocket connections.
package ws

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/internal/middleware"
	"github.com/zynx-ai/backend/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the HTTP level
	},
}

// inbound is one client frame: a chat message to relay.
type inbound struct {
	Message string `json:"message"`
}

// outbound is one server frame. Type is "chunk", "done", or "error".
type outbound struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Extra   interface{} `json:"trialEnd,omitempty"`
}

// ChatHandler handles WebSocket connections for streamed chat.
type ChatHandler struct {
	chat  *service.ChatService
	auth  *service.AuthService
	store middleware.EntitlementStore
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *service.ChatService, auth *service.AuthService, store middleware.EntitlementStore) *ChatHandler {
	return &ChatHandler{chat: chat, auth: auth, store: store}
}

// Handle upgrades HTTP to WebSocket and relays chat messages as streamed
// responses. URL: /ws/chat?token=JWT_TOKEN
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Authenticate via query param token
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log.Info().Str("user", claims.Email).Msg("chat stream connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("chat stream closed unexpectedly")
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			h.writeError(conn, domain.ErrBadRequest("invalid message frame"))
			continue
		}

		if !h.checkEntitlement(conn, r, claims.Sub, claims.Role) {
			continue
		}

		h.relay(conn, r, claims.Sub, in.Message)
	}
}

// checkEntitlement re-reads access state before each message, mirroring the
// HTTP gate.
func (h *ChatHandler) checkEntitlement(conn *websocket.Conn, r *http.Request, userID, role string) bool {
	if role == "admin" {
		return true
	}

	ent, err := h.store.GetEntitlement(r.Context(), userID)
	if err != nil {
		h.writeError(conn, domain.ErrInternal("failed to check access", err))
		return false
	}
	if ent == nil {
		h.writeError(conn, domain.ErrNotFound("User not found"))
		return false
	}
	if ent.IsBanned {
		h.writeError(conn, domain.ErrForbidden("account is banned"))
		return false
	}

	decision := ent.Evaluate(time.Now())
	if !decision.Allowed {
		_ = conn.WriteJSON(outbound{
			Type:  "error",
			Error: "Trial expired. Please subscribe to continue.",
			Code:  decision.Code,
			Extra: decision.TrialEnd,
		})
		return false
	}
	return true
}

func (h *ChatHandler) relay(conn *websocket.Conn, r *http.Request, userID, message string) {
	stream, persist, err := h.chat.SendStream(r.Context(), userID, &domain.ChatRequest{Message: message})
	if err != nil {
		h.writeError(conn, err)
		return
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.writeError(conn, err)
			return
		}
		full.WriteString(chunk)
		if err := conn.WriteJSON(outbound{Type: "chunk", Content: chunk}); err != nil {
			return
		}
	}

	if err := persist(full.String()); err != nil {
		h.writeError(conn, domain.ErrInternal("failed to store message", err))
		return
	}
	_ = conn.WriteJSON(outbound{Type: "done"})
}

func (h *ChatHandler) writeError(conn *websocket.Conn, err error) {
	msg := "internal server error"
	if appErr, ok := domain.AsAppError(err); ok {
		msg = appErr.Message
	} else {
		log.Error().Err(err).Msg("chat stream error")
	}
	_ = conn.WriteJSON(outbound{Type: "error", Error: msg})
}
