package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onboarding-gateway/backend/internal/db"
	"github.com/onboarding-gateway/backend/internal/event"
	"github.com/onboarding-gateway/backend/internal/registry"
	"github.com/onboarding-gateway/backend/internal/repository"
)

func newWebhookRouter(t *testing.T, reg *registry.Registry, events *repository.EventRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewWebhookHandler(reg, events).RegisterRoutes(r)
	return r
}

func postWebhook(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookAcknowledgesUnknownSession(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	r := newWebhookRouter(t, reg, nil)

	// No session holds id 9999; the producer must still get 200.
	w := postWebhook(r, `{
		"trigger": "onboarding.registrationCompleted",
		"data": {
			"success": true,
			"data": {"userId": "u1", "sessionId": "9999"},
			"errorMessage": null,
			"onboardingId": "o1"
		}
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, reg.Count())
}

func TestWebhookOnboardingIsNoOp(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	r := newWebhookRouter(t, reg, nil)

	w := postWebhook(r, `{
		"trigger": "onboarding.onboardingCompleted",
		"data": {
			"success": true,
			"data": {"userId": "u1", "sessionId": "42"},
			"errorMessage": null,
			"onboardingId": "o3"
		}
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	r := newWebhookRouter(t, reg, nil)

	assert.Equal(t, http.StatusBadRequest, postWebhook(r, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, postWebhook(r, `{"trigger":"user.deleted","data":{}}`).Code)
}

func TestWebhookRecordsAuditEntry(t *testing.T) {
	reg := registry.New()
	defer reg.Close()

	database, err := db.NewTestDB()
	require.NoError(t, err)
	defer database.Close()
	events := repository.NewEventRepository(database)

	r := newWebhookRouter(t, reg, events)

	w := postWebhook(r, `{
		"trigger": "onboarding.loginCompleted",
		"data": {
			"success": true,
			"data": {"target": "home"},
			"sessionId": "7",
			"errorMessage": null,
			"onboardingId": "o2"
		}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	recorded, err := events.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, event.TriggerLogin, recorded[0].Trigger)
	assert.Equal(t, "o2", recorded[0].OnboardingID)
	assert.True(t, recorded[0].Success)
	require.NotNil(t, recorded[0].SessionID)
	assert.Equal(t, uint16(7), *recorded[0].SessionID)
	assert.True(t, recorded[0].Dispatched)
}
