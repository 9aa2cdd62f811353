// Package sms abstracts one-time-passcode delivery.
package sms

import "github.com/rs/zerolog/log"

// Gateway sends SMS messages to phone numbers.
type Gateway interface {
	Send(phone, body string) error
}

// MockGateway logs messages instead of sending them. Used in development and
// tests; a real provider implementation satisfies the same interface.
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) Send(phone, body string) error {
	log.Info().Str("phone", phone).Str("body", body).Msg("mock SMS sent")
	return nil
}
