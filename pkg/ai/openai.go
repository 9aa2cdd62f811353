package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient is the go-openai backed implementation of Client.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for the given API key and model.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Chat sends the conversation and returns the completed reply with token usage.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (*Reply, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, mapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return &Reply{Text: "No response generated"}, nil
	}
	return &Reply{
		Text:   resp.Choices[0].Message.Content,
		Tokens: resp.Usage.TotalTokens,
	}, nil
}

// ChatStream sends the conversation and returns an incremental text stream.
func (c *OpenAIClient) ChatStream(ctx context.Context, messages []Message) (Stream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:         c.model,
		Messages:      toOpenAIMessages(messages),
		Temperature:   0.7,
		MaxTokens:     1000,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, mapAPIError(err)
	}
	return &openaiStream{inner: stream}, nil
}

type openaiStream struct {
	inner  *openai.ChatCompletionStream
	tokens int
}

func (s *openaiStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		return "", err
	}
	// With IncludeUsage the final chunk carries usage and no choices.
	if resp.Usage != nil {
		s.tokens = resp.Usage.TotalTokens
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openaiStream) Usage() int {
	return s.tokens
}

func (s *openaiStream) Close() error {
	return s.inner.Close()
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func mapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("invalid OpenAI API key")
		case http.StatusTooManyRequests:
			return fmt.Errorf("OpenAI rate limit exceeded")
		case http.StatusInternalServerError:
			return fmt.Errorf("OpenAI service unavailable")
		}
	}
	return fmt.Errorf("failed to generate AI response: %w", err)
}
