package domain

import "time"

// Message is one chat exchange: the user's message and the model's response.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Response  *string   `json:"response,omitempty"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatRequest is the validated input for sending a chat message.
type ChatRequest struct {
	Message string `json:"message" validate:"required,min=1,max=4000"`
}

// ChatResponse is returned after the model replies.
type ChatResponse struct {
	Message  *Message `json:"message"`
	Response string   `json:"response"`
}

// HistoryResponse is a page of chat history.
type HistoryResponse struct {
	Messages []*Message `json:"messages"`
	Total    int        `json:"total"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}

// OtpCode is a one-time SMS passcode pending verification.
type OtpCode struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"userId,omitempty"`
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// RefreshToken is a persisted refresh token for one user session.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditLog records a sensitive user or admin action.
type AuditLog struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"userId,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}
