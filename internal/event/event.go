// Package event decodes the webhook envelope posted by the onboarding
// backend and turns actionable variants into registry prompts.
package event

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/onboarding-gateway/backend/internal/model"
)

// Trigger literals accepted on the webhook envelope.
const (
	TriggerRegistration = "onboarding.registrationCompleted"
	TriggerOnboarding   = "onboarding.onboardingCompleted"
	TriggerLogin        = "onboarding.loginCompleted"
)

// Envelope is the outer webhook body: a trigger discriminator plus a
// variant-specific data payload.
type Envelope struct {
	Trigger string          `json:"trigger"`
	Data    json.RawMessage `json:"data"`
}

// Registration is the payload of a registrationCompleted event. The target
// session id lives inside Data.
type Registration struct {
	Success      bool              `json:"success"`
	Data         *RegistrationData `json:"data"`
	ErrorMessage *string           `json:"errorMessage"`
	OnboardingID string            `json:"onboardingId"`
}

// RegistrationData is the inner object forwarded to the browser. Type is
// empty on the wire from the backend and injected as "registration" before
// re-serialisation.
type RegistrationData struct {
	Type      string  `json:"type"`
	UserID    string  `json:"userId"`
	SessionID *string `json:"sessionId,omitempty"`
	Password  *string `json:"password,omitempty"`
}

// Onboarding is the payload of an onboardingCompleted event. It is logged
// and dropped; no prompt is ever derived from it.
type Onboarding struct {
	Success      bool            `json:"success"`
	Data         *OnboardingData `json:"data"`
	ErrorMessage *string         `json:"errorMessage"`
	OnboardingID string          `json:"onboardingId"`
}

// OnboardingData is the inner object of an onboarding event.
type OnboardingData struct {
	UserID    string  `json:"userId"`
	SessionID *string `json:"sessionId,omitempty"`
}

// Login is the payload of a loginCompleted event. Unlike registration, the
// target session id is the outer SessionID, not anything inside Data.
type Login struct {
	Success      bool       `json:"success"`
	Data         *LoginData `json:"data"`
	SessionID    *string    `json:"sessionId"`
	ErrorMessage *string    `json:"errorMessage"`
	OnboardingID string     `json:"onboardingId"`
}

// LoginData is the inner object forwarded to the browser on login.
type LoginData struct {
	Type   string          `json:"type"`
	Target string          `json:"target"`
	Tokens json.RawMessage `json:"tokens,omitempty"`
}

// Prompt is an address-plus-payload message for the registry: deliver
// Payload as one text frame to the session with id SessionID.
type Prompt struct {
	SessionID uint16
	Payload   string
}

// Result is the outcome of decoding one webhook body. Prompt is nil when
// the event is well formed but not actionable (onboarding events, missing
// or unparseable session ids).
type Result struct {
	Trigger      string
	OnboardingID string
	Success      bool
	Prompt       *Prompt
}

// Decode parses a webhook body. It returns an error for malformed JSON or
// an unknown trigger; everything else is a well-formed event and must be
// acknowledged with 200 regardless of whether a prompt came out of it.
func Decode(body []byte) (*Result, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Trigger {
	case TriggerRegistration:
		return decodeRegistration(env.Data)
	case TriggerOnboarding:
		return decodeOnboarding(env.Data)
	case TriggerLogin:
		return decodeLogin(env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownTrigger, env.Trigger)
	}
}

func decodeRegistration(raw json.RawMessage) (*Result, error) {
	var reg Registration
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("invalid registration event: %w", err)
	}

	res := &Result{
		Trigger:      TriggerRegistration,
		OnboardingID: reg.OnboardingID,
		Success:      reg.Success,
	}
	if reg.Data == nil {
		return res, nil
	}

	id, ok := parseSessionID(reg.Data.SessionID)
	if !ok {
		return res, nil
	}

	reg.Data.Type = "registration"
	payload, err := json.Marshal(reg.Data)
	if err != nil {
		return nil, fmt.Errorf("re-serialise registration data: %w", err)
	}

	res.Prompt = &Prompt{SessionID: id, Payload: string(payload)}
	return res, nil
}

func decodeOnboarding(raw json.RawMessage) (*Result, error) {
	var ob Onboarding
	if err := json.Unmarshal(raw, &ob); err != nil {
		return nil, fmt.Errorf("invalid onboarding event: %w", err)
	}

	return &Result{
		Trigger:      TriggerOnboarding,
		OnboardingID: ob.OnboardingID,
		Success:      ob.Success,
	}, nil
}

func decodeLogin(raw json.RawMessage) (*Result, error) {
	var login Login
	if err := json.Unmarshal(raw, &login); err != nil {
		return nil, fmt.Errorf("invalid login event: %w", err)
	}

	res := &Result{
		Trigger:      TriggerLogin,
		OnboardingID: login.OnboardingID,
		Success:      login.Success,
	}
	if login.Data == nil {
		return res, nil
	}

	// Login addressing uses the outer sessionId.
	id, ok := parseSessionID(login.SessionID)
	if !ok {
		return res, nil
	}

	login.Data.Type = "login"
	payload, err := json.Marshal(login.Data)
	if err != nil {
		return nil, fmt.Errorf("re-serialise login data: %w", err)
	}

	res.Prompt = &Prompt{SessionID: id, Payload: string(payload)}
	return res, nil
}

// parseSessionID parses the decimal string form of a 16-bit session id.
func parseSessionID(s *string) (uint16, bool) {
	if s == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(*s, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}
