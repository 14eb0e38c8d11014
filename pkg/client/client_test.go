package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect-service/pkg/client"
)

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"message": message,
		"data":    data,
	})
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/usage/check/aiMessage", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			writeEnvelope(w, http.StatusUnauthorized, false, "invalid or expired token", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "ok", map[string]interface{}{
			"allowed": true, "reason": "within_limits", "current": 1, "limit": 3, "remaining": 2,
		})
	})
	mux.HandleFunc("/api/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusTooManyRequests, false, "usage limit reached for aiMessage", map[string]interface{}{
			"reason": "monthly_limit_exceeded", "current": 3, "limit": 3, "remaining": 0,
			"upgradeRequired": true, "upgradeUrl": "/pricing",
		})
	})
	mux.HandleFunc("/api/admin/subscription-stats", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusForbidden, false, "insufficient permissions", nil)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientCheckAction(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := client.New(srv.URL+"/api", client.NewSession("good", "p1", "patient"))

	res, err := c.CheckAction(context.Background(), client.ActionAIMessage)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(2), res.Remaining)
}

func TestClientUnauthorizedClearsSession(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	sess := client.NewSession("stale", "p1", "patient")
	loggedOut := false
	c := client.New(srv.URL+"/api", sess, client.WithOnUnauthorized(func() { loggedOut = true }))

	_, err := c.CheckAction(context.Background(), client.ActionAIMessage)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, sess.Authenticated())
	assert.True(t, loggedOut)
}

func TestClientForbiddenReportsRole(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	var role string
	c := client.New(srv.URL+"/api", client.NewSession("good", "d1", "doctor"),
		client.WithOnForbidden(func(r string) { role = r }))

	_, err := c.SubscriptionStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, "doctor", role)
}

func TestClientLimitExceeded(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := client.New(srv.URL+"/api", client.NewSession("good", "p1", "patient"))

	_, err := c.Chat(context.Background(), "I have a headache")

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	le, ok := apiErr.LimitExceeded()
	require.True(t, ok)
	assert.Equal(t, int64(3), le.Limit)
	assert.True(t, le.UpgradeRequired)
	assert.Equal(t, "/pricing", le.UpgradeURL)
}

func TestSummaryHelpers(t *testing.T) {
	t.Parallel()

	s := &client.UsageSummary{}
	s.Limits.AIMessages = 3
	s.Limits.AppointmentsPerMonth = client.Unlimited
	s.CurrentUsage.AIMessages = 3
	s.CurrentUsage.Appointments = 40
	s.Remaining.AIMessages = 0
	s.Remaining.Appointments = client.Unlimited

	assert.True(t, client.AtLimit(s, client.ActionAIMessage))
	assert.False(t, client.AtLimit(s, client.ActionAppointment))
	assert.Equal(t, client.Unlimited, client.Remaining(s, client.ActionAppointment))
}
