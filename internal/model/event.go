// Package model defines shared records and errors for the gateway.
package model

import "time"

// WebhookEvent is one audit record per webhook delivery accepted on the
// ingress. Sessions themselves are never persisted; this only records the
// traffic that crossed the gateway.
type WebhookEvent struct {
	ID           string    `json:"id"`
	Trigger      string    `json:"trigger"`
	OnboardingID string    `json:"onboardingId"`
	Success      bool      `json:"success"`
	SessionID    *uint16   `json:"sessionId,omitempty"`
	Dispatched   bool      `json:"dispatched"`
	ReceivedAt   time.Time `json:"receivedAt"`
}
