package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/pkg/ai"
)

type fakeAIClient struct {
	lastMessages []ai.Message
	reply        *ai.Reply
	stream       *fakeStream
}

func (c *fakeAIClient) Chat(_ context.Context, messages []ai.Message) (*ai.Reply, error) {
	c.lastMessages = messages
	return c.reply, nil
}

func (c *fakeAIClient) ChatStream(_ context.Context, messages []ai.Message) (ai.Stream, error) {
	c.lastMessages = messages
	return c.stream, nil
}

type fakeStream struct {
	chunks []string
	tokens int
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		return "", io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *fakeStream) Usage() int { return s.tokens }

func (s *fakeStream) Close() error { return nil }

type fakeMessageStore struct {
	messages []*domain.Message
}

func (s *fakeMessageStore) Create(_ context.Context, m *domain.Message) error {
	s.messages = append(s.messages, m)
	return nil
}

// ListRecent mirrors the repository contract: the most recent limit
// messages, newest first.
func (s *fakeMessageStore) ListRecent(_ context.Context, userID string, limit int) ([]*domain.Message, error) {
	var out []*domain.Message
	for _, m := range s.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *fakeMessageStore) List(_ context.Context, userID string, limit, offset int) ([]*domain.Message, int, error) {
	var out []*domain.Message
	for _, m := range s.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, len(out), nil
}

func (s *fakeMessageStore) ListBetween(_ context.Context, userID string, start, end time.Time) ([]*domain.Message, error) {
	var out []*domain.Message
	for _, m := range s.messages {
		if m.UserID == userID && !m.CreatedAt.Before(start) && !m.CreatedAt.After(end) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) FindByID(_ context.Context, id, userID string) (*domain.Message, error) {
	for _, m := range s.messages {
		if m.ID == id && m.UserID == userID {
			return m, nil
		}
	}
	return nil, nil
}

func (s *fakeMessageStore) Delete(_ context.Context, id string) error {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *fakeMessageStore) DeleteAllForUser(_ context.Context, userID string) error {
	var kept []*domain.Message
	for _, m := range s.messages {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func storedMessage(userID, content, response string, at time.Time) *domain.Message {
	return &domain.Message{
		ID:        domain.NewID(),
		UserID:    userID,
		Role:      ai.RoleUser,
		Content:   content,
		Response:  &response,
		Tokens:    10,
		CreatedAt: at,
	}
}

func TestSendPersistsExchange(t *testing.T) {
	client := &fakeAIClient{reply: &ai.Reply{Text: "hello there", Tokens: 42}}
	store := &fakeMessageStore{}
	svc := NewChatService(client, store, nil)

	resp, err := svc.Send(context.Background(), "u1", &domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Response)

	require.Len(t, store.messages, 1)
	saved := store.messages[0]
	assert.Equal(t, "hi", saved.Content)
	require.NotNil(t, saved.Response)
	assert.Equal(t, "hello there", *saved.Response)
	assert.Equal(t, 42, saved.Tokens)
}

type fakeAuditStore struct {
	entries []*domain.AuditLog
}

func (s *fakeAuditStore) Create(_ context.Context, l *domain.AuditLog) error {
	s.entries = append(s.entries, l)
	return nil
}

func TestSendWritesAuditEntry(t *testing.T) {
	audit := &fakeAuditStore{}
	svc := NewChatService(&fakeAIClient{reply: &ai.Reply{Text: "ok"}}, &fakeMessageStore{}, audit)

	_, err := svc.Send(context.Background(), "u1", &domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "chat_message", audit.entries[0].Action)
	require.NotNil(t, audit.entries[0].UserID)
	assert.Equal(t, "u1", *audit.entries[0].UserID)
}

func TestSendBuildsContextFromHistory(t *testing.T) {
	client := &fakeAIClient{reply: &ai.Reply{Text: "ok"}}
	store := &fakeMessageStore{}
	now := time.Now()
	for i := 0; i < 15; i++ {
		store.messages = append(store.messages,
			storedMessage("u1", "question", "answer", now.Add(time.Duration(i)*time.Minute)))
	}
	svc := NewChatService(client, store, nil)

	_, err := svc.Send(context.Background(), "u1", &domain.ChatRequest{Message: "latest"})
	require.NoError(t, err)

	msgs := client.lastMessages
	require.NotEmpty(t, msgs)
	assert.Equal(t, ai.RoleSystem, msgs[0].Role)

	// 10 history exchanges, two turns each, plus system prompt and new message.
	assert.Len(t, msgs, 2*chatContextSize+2)
	last := msgs[len(msgs)-1]
	assert.Equal(t, ai.RoleUser, last.Role)
	assert.Equal(t, "latest", last.Content)
}

func TestSendStreamPersistsTokenUsage(t *testing.T) {
	client := &fakeAIClient{stream: &fakeStream{chunks: []string{"hel", "lo"}, tokens: 37}}
	store := &fakeMessageStore{}
	audit := &fakeAuditStore{}
	svc := NewChatService(client, store, audit)

	stream, persist, err := svc.SendStream(context.Background(), "u1", &domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		full.WriteString(chunk)
	}
	require.NoError(t, persist(full.String()))

	require.Len(t, store.messages, 1)
	saved := store.messages[0]
	assert.Equal(t, "hi", saved.Content)
	require.NotNil(t, saved.Response)
	assert.Equal(t, "hello", *saved.Response)
	assert.Equal(t, 37, saved.Tokens)

	require.Len(t, audit.entries, 1)
}

func TestSendFeedsHistoryInChronologicalOrder(t *testing.T) {
	client := &fakeAIClient{reply: &ai.Reply{Text: "ok"}}
	store := &fakeMessageStore{}
	now := time.Now()
	store.messages = append(store.messages,
		storedMessage("u1", "first question", "first answer", now.Add(-2*time.Minute)),
		storedMessage("u1", "second question", "second answer", now.Add(-time.Minute)))
	svc := NewChatService(client, store, nil)

	_, err := svc.Send(context.Background(), "u1", &domain.ChatRequest{Message: "latest"})
	require.NoError(t, err)

	msgs := client.lastMessages
	require.Len(t, msgs, 6)
	assert.Equal(t, "first question", msgs[1].Content)
	assert.Equal(t, "first answer", msgs[2].Content)
	assert.Equal(t, "second question", msgs[3].Content)
	assert.Equal(t, "second answer", msgs[4].Content)
	assert.Equal(t, "latest", msgs[5].Content)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	svc := NewChatService(&fakeAIClient{}, &fakeMessageStore{}, nil)

	_, err := svc.Send(context.Background(), "u1", &domain.ChatRequest{Message: ""})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 422, appErr.Code)
}

func TestDeleteUnknownMessage(t *testing.T) {
	svc := NewChatService(&fakeAIClient{}, &fakeMessageStore{}, nil)

	err := svc.Delete(context.Background(), "u1", "missing")
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.Code)
}

func TestDeleteRequiresOwnership(t *testing.T) {
	store := &fakeMessageStore{}
	msg := storedMessage("u1", "mine", "answer", time.Now())
	store.messages = append(store.messages, msg)
	svc := NewChatService(&fakeAIClient{}, store, nil)

	err := svc.Delete(context.Background(), "u2", msg.ID)
	require.Error(t, err)
	assert.Len(t, store.messages, 1)
}

func TestExportFormats(t *testing.T) {
	store := &fakeMessageStore{}
	store.messages = append(store.messages, storedMessage("u1", "how are you", "fine, thanks", time.Now()))
	svc := NewChatService(&fakeAIClient{}, store, nil)

	data, contentType, err := svc.Export(context.Background(), "u1", "json", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	var decoded []*domain.Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)

	data, contentType, err = svc.Export(context.Background(), "u1", "csv", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "message")
	assert.Contains(t, lines[1], "how are you")

	data, contentType, err = svc.Export(context.Background(), "u1", "txt", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", contentType)
	assert.Contains(t, string(data), "You: how are you")
	assert.Contains(t, string(data), "Zynx: fine, thanks")

	_, _, err = svc.Export(context.Background(), "u1", "xml", time.Time{}, time.Time{})
	require.Error(t, err)
}
