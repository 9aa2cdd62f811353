package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/pkg/ai"
)

const (
	// Number of prior exchanges included as model context.
	chatContextSize = 10

	systemPrompt = "You are Zynx, a helpful and knowledgeable AI assistant. " +
		"Answer clearly and concisely. If you are unsure, say so."
)

type messageStore interface {
	Create(ctx context.Context, m *domain.Message) error
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.Message, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*domain.Message, int, error)
	ListBetween(ctx context.Context, userID string, start, end time.Time) ([]*domain.Message, error)
	FindByID(ctx context.Context, id, userID string) (*domain.Message, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type chatAuditStore interface {
	Create(ctx context.Context, l *domain.AuditLog) error
}

// ChatService relays messages to the model provider and persists the
// conversation.
type ChatService struct {
	client   ai.Client
	messages messageStore
	audit    chatAuditStore
	validate *validator.Validate
}

// NewChatService creates a new ChatService. audit may be nil.
func NewChatService(client ai.Client, messages messageStore, audit chatAuditStore) *ChatService {
	return &ChatService{
		client:   client,
		messages: messages,
		audit:    audit,
		validate: validator.New(),
	}
}

// Send relays one message to the model with recent history as context and
// persists the exchange.
func (s *ChatService) Send(ctx context.Context, userID string, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	msgs, err := s.buildContext(ctx, userID, req.Message)
	if err != nil {
		return nil, err
	}

	reply, err := s.client.Chat(ctx, msgs)
	if err != nil {
		return nil, err
	}

	record := &domain.Message{
		ID:        domain.NewID(),
		UserID:    userID,
		Role:      ai.RoleUser,
		Content:   req.Message,
		Response:  &reply.Text,
		Tokens:    reply.Tokens,
		CreatedAt: time.Now(),
	}
	if err := s.messages.Create(ctx, record); err != nil {
		return nil, domain.ErrInternal("failed to store message", err)
	}
	s.writeAudit(ctx, userID, record.ID, reply.Tokens)

	return &domain.ChatResponse{Message: record, Response: reply.Text}, nil
}

func (s *ChatService) writeAudit(ctx context.Context, userID, messageID string, tokens int) {
	if s.audit == nil {
		return
	}
	err := s.audit.Create(ctx, &domain.AuditLog{
		ID:        domain.NewID(),
		UserID:    &userID,
		Action:    "chat_message",
		Resource:  "message",
		Details:   fmt.Sprintf("message %s (%d tokens)", messageID, tokens),
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("failed to write chat audit log")
	}
}

// SendStream relays one message and returns an incremental response stream.
// The caller must invoke persist with the accumulated text once the stream
// is drained so the exchange is recorded.
func (s *ChatService) SendStream(ctx context.Context, userID string, req *domain.ChatRequest) (ai.Stream, func(fullText string) error, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, domain.ErrValidation(err.Error())
	}

	msgs, err := s.buildContext(ctx, userID, req.Message)
	if err != nil {
		return nil, nil, err
	}

	stream, err := s.client.ChatStream(ctx, msgs)
	if err != nil {
		return nil, nil, err
	}

	persist := func(fullText string) error {
		record := &domain.Message{
			ID:        domain.NewID(),
			UserID:    userID,
			Role:      ai.RoleUser,
			Content:   req.Message,
			Response:  &fullText,
			Tokens:    stream.Usage(),
			CreatedAt: time.Now(),
		}
		if err := s.messages.Create(context.WithoutCancel(ctx), record); err != nil {
			log.Error().Err(err).Str("user", userID).Msg("failed to store streamed message")
			return err
		}
		s.writeAudit(context.WithoutCancel(ctx), userID, record.ID, record.Tokens)
		return nil
	}
	return stream, persist, nil
}

func (s *ChatService) buildContext(ctx context.Context, userID, newMessage string) ([]ai.Message, error) {
	history, err := s.messages.ListRecent(ctx, userID, chatContextSize)
	if err != nil {
		return nil, domain.ErrInternal("failed to load chat history", err)
	}

	// ListRecent returns newest first; the model needs chronological order.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	msgs := make([]ai.Message, 0, 2*len(history)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: m.Content})
		if m.Response != nil {
			msgs = append(msgs, ai.Message{Role: ai.RoleAssistant, Content: *m.Response})
		}
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: newMessage})
	return msgs, nil
}

// History returns a page of the user's chat history, newest first.
func (s *ChatService) History(ctx context.Context, userID string, limit, offset int) (*domain.HistoryResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	msgs, total, err := s.messages.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, domain.ErrInternal("failed to load chat history", err)
	}
	return &domain.HistoryResponse{Messages: msgs, Total: total, Limit: limit, Offset: offset}, nil
}

// Delete removes one message owned by the user.
func (s *ChatService) Delete(ctx context.Context, userID, messageID string) error {
	msg, err := s.messages.FindByID(ctx, messageID, userID)
	if err != nil {
		return domain.ErrInternal("failed to find message", err)
	}
	if msg == nil {
		return domain.ErrNotFound("message not found")
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return domain.ErrInternal("failed to delete message", err)
	}
	return nil
}

// Clear removes the user's entire chat history.
func (s *ChatService) Clear(ctx context.Context, userID string) error {
	if err := s.messages.DeleteAllForUser(ctx, userID); err != nil {
		return domain.ErrInternal("failed to clear chat history", err)
	}
	return nil
}

// Export renders the user's history in the requested format. Supported
// formats are json, csv, and txt. The zero time range means everything.
func (s *ChatService) Export(ctx context.Context, userID, format string, start, end time.Time) (data []byte, contentType string, err error) {
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	if end.IsZero() {
		end = time.Now()
	}

	msgs, err := s.messages.ListBetween(ctx, userID, start, end)
	if err != nil {
		return nil, "", domain.ErrInternal("failed to load chat history", err)
	}

	switch format {
	case "json", "":
		data, err = json.MarshalIndent(msgs, "", "  ")
		if err != nil {
			return nil, "", domain.ErrInternal("failed to encode export", err)
		}
		return data, "application/json", nil
	case "csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"id", "createdAt", "message", "response", "tokens"})
		for _, m := range msgs {
			response := ""
			if m.Response != nil {
				response = *m.Response
			}
			_ = w.Write([]string{m.ID, m.CreatedAt.Format(time.RFC3339), m.Content, response, strconv.Itoa(m.Tokens)})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", domain.ErrInternal("failed to encode export", err)
		}
		return buf.Bytes(), "text/csv", nil
	case "txt":
		var buf bytes.Buffer
		for _, m := range msgs {
			fmt.Fprintf(&buf, "[%s] You: %s\n", m.CreatedAt.Format(time.RFC3339), m.Content)
			if m.Response != nil {
				fmt.Fprintf(&buf, "[%s] Zynx: %s\n", m.CreatedAt.Format(time.RFC3339), *m.Response)
			}
			buf.WriteString("\n")
		}
		return buf.Bytes(), "text/plain", nil
	default:
		return nil, "", domain.ErrBadRequest("unsupported export format: " + format)
	}
}
