package app_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medconnect-service/internal/app"
	"medconnect-service/internal/config"
	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/usage"
	adminHandler "medconnect-service/internal/handlers/admin"
	appointmentHandler "medconnect-service/internal/handlers/appointment"
	assistantHandler "medconnect-service/internal/handlers/assistant"
	healthHandler "medconnect-service/internal/handlers/health"
	subscriptionHandler "medconnect-service/internal/handlers/subscription"
	usageHandler "medconnect-service/internal/handlers/usage"
	wsHandler "medconnect-service/internal/handlers/websocket"
	"medconnect-service/internal/middleware"
	"medconnect-service/internal/pkg/jwt"
	"medconnect-service/internal/repository/memory"
	appointmentUsecase "medconnect-service/internal/service/appointment"
	assistantUsecase "medconnect-service/internal/service/assistant"
	subscriptionUsecase "medconnect-service/internal/service/subscription"
	usageUsecase "medconnect-service/internal/service/usage"
	"medconnect-service/internal/websocket"
)

type env struct {
	router *gin.Engine
	gen    *jwt.Generator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	gen := jwt.NewGenerator(key, "medconnect", "medconnect-users", "", time.Hour)
	ver := jwt.NewVerifier(&key.PublicKey, "medconnect", "medconnect-users")

	catalog, err := plan.NewCatalog(plan.DefaultPlans(3, 1))
	require.NoError(t, err)

	store := memory.NewSubscriptionStore()
	ledger := memory.NewUsageLedger()

	subs := subscriptionUsecase.NewSubscriptionService(
		store, store.Billing(), store.Logs(), ledger, catalog,
		subscriptionUsecase.NewSimulatedGateway(logger), logger)
	usageService := usageUsecase.NewUsageService(ledger, catalog, subs, logger)
	assistantService := assistantUsecase.NewAssistantService(assistantUsecase.EchoResponder{}, time.Second, logger)
	appointmentService := appointmentUsecase.NewAppointmentService(memory.NewAppointmentStore(), logger)

	hub := websocket.NewHub(ver, nil, logger)

	h := &app.Handlers{
		UsageHandler:        usageHandler.NewUsageHandler(usageService),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(subs),
		AdminHandler:        adminHandler.NewAdminHandler(subs),
		AssistantHandler:    assistantHandler.NewAssistantHandler(assistantService),
		AppointmentHandler:  appointmentHandler.NewAppointmentHandler(appointmentService),
		HealthHandler:       healthHandler.NewHealthHandler(nil, nil),
		WSHandler:           wsHandler.NewWebSocketHandler(hub, []string{"*"}, logger),
		AuthMiddleware:      middleware.NewAuthMiddleware(ver, nil, logger),
		UsageGate:           usageService,
	}

	r := gin.New()
	app.SetupRouter(r, config.AppConfig{}, logger, h)
	return &env{router: r, gen: gen}
}

func (e *env) token(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	tok, _, err := e.gen.Generate(jwt.Identity{UserID: userID, Email: userID + "@example.com", Roles: roles}, jwt.PurposeAccess, time.Hour)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) call(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func booking(days int) map[string]interface{} {
	return map[string]interface{}{
		"doctorId":    "doctor-1",
		"scheduledAt": time.Now().Add(time.Duration(days) * 24 * time.Hour).UTC().Format(time.RFC3339),
		"reason":      "checkup",
	}
}

func TestPublicRoutes(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	code, _ := e.call(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body := e.call(t, http.MethodGet, "/api/subscriptions/plans", "", nil)
	require.Equal(t, http.StatusOK, code)
	var plans []plan.Plan
	require.NoError(t, json.Unmarshal(body.Data, &plans))
	assert.Len(t, plans, 3)

	code, _ = e.call(t, http.MethodGet, "/api/usage/summary", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFreeAppointmentLimit(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	tok := e.token(t, "patient-1", jwt.RolePatient)

	// a rejected booking gives its reservation back
	code, _ := e.call(t, http.MethodPost, "/api/appointments", tok, booking(-1))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.call(t, http.MethodPost, "/api/appointments", tok, booking(2))
	require.Equal(t, http.StatusCreated, code)

	code, body := e.call(t, http.MethodPost, "/api/appointments", tok, booking(3))
	require.Equal(t, http.StatusTooManyRequests, code)
	var limit usage.LimitExceeded
	require.NoError(t, json.Unmarshal(body.Data, &limit))
	assert.Equal(t, int64(1), limit.Current)
	assert.Equal(t, int64(1), limit.Limit)
	assert.True(t, limit.UpgradeRequired)

	code, body = e.call(t, http.MethodGet, "/api/usage/check/appointment", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var check usage.CheckResult
	require.NoError(t, json.Unmarshal(body.Data, &check))
	assert.False(t, check.Allowed)

	// upgrading lifts the cap right away
	code, _ = e.call(t, http.MethodPost, "/api/subscriptions/update", tok, map[string]string{
		"tier": "pro", "paymentMethodId": "pm_card_visa",
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = e.call(t, http.MethodPost, "/api/appointments", tok, booking(4))
	assert.Equal(t, http.StatusCreated, code)
}

func TestFreeAIMessageLimit(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	tok := e.token(t, "patient-2", jwt.RolePatient)

	msg := map[string]string{"message": "I have a mild headache"}
	for i := 0; i < 2; i++ {
		code, _ := e.call(t, http.MethodPost, "/api/ai/chat", tok, msg)
		require.Equal(t, http.StatusOK, code)
	}
	// both AI channels share one counter
	code, _ := e.call(t, http.MethodPost, "/api/ai/symptom", tok, msg)
	require.Equal(t, http.StatusOK, code)

	code, _ = e.call(t, http.MethodPost, "/api/ai/chat", tok, msg)
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, body := e.call(t, http.MethodGet, "/api/usage/summary", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var summary usage.Summary
	require.NoError(t, json.Unmarshal(body.Data, &summary))
	assert.Equal(t, int64(3), summary.CurrentUsage.AIMessages)
	assert.Equal(t, int64(0), summary.Remaining.AIMessages)
	assert.True(t, summary.NeedsUpgrade)
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	patient := e.token(t, "patient-3", jwt.RolePatient)
	admin := e.token(t, "admin-1", jwt.RoleAdmin)

	code, _ := e.call(t, http.MethodGet, "/api/admin/subscription-stats", patient, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.call(t, http.MethodGet, "/api/usage/analytics", patient, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.call(t, http.MethodGet, "/api/admin/subscription-stats", admin, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.call(t, http.MethodGet, "/api/usage/analytics", admin, nil)
	assert.Equal(t, http.StatusOK, code)
}
