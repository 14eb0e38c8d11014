// pkg/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithOnUnauthorized runs after a 401 has cleared the session, typically to
// send the user back to login.
func WithOnUnauthorized(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithOnForbidden runs after a 403 with the session role, typically to
// redirect to that role's dashboard.
func WithOnForbidden(fn func(role string)) Option {
	return func(c *Client) { c.onForbidden = fn }
}

// Client calls the MedConnect REST API.
type Client struct {
	baseURL        string
	http           *http.Client
	session        *Session
	logger         *zap.Logger
	onUnauthorized func()
	onForbidden    func(role string)
}

// New returns a Client for baseURL, e.g. "https://api.example.com/api".
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = &Session{}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		session: session,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    env.Message,
			Detail:     env.Error,
			Data:       env.Data,
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.handleAuthFailure(resp.StatusCode)
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) handleAuthFailure(status int) {
	switch status {
	case http.StatusUnauthorized:
		c.session.Clear()
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	case http.StatusForbidden:
		if c.onForbidden != nil {
			c.onForbidden(c.session.Role())
		}
	}
}

// ==================== Usage ====================

func (c *Client) GetUsageSummary(ctx context.Context) (*UsageSummary, error) {
	var out UsageSummary
	if err := c.do(ctx, http.MethodGet, "/usage/summary", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckAction asks the server whether action is allowed. Errors are returned
// as is; see Gate for the fail policies.
func (c *Client) CheckAction(ctx context.Context, action Action) (*CheckResult, error) {
	var out CheckResult
	if err := c.do(ctx, http.MethodGet, "/usage/check/"+url.PathEscape(string(action)), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCurrentUsage(ctx context.Context) (*CurrentUsage, error) {
	var out CurrentUsage
	if err := c.do(ctx, http.MethodGet, "/usage/current", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUsageHistory lists usage records; empty period and zero limit use the
// server defaults.
func (c *Client) GetUsageHistory(ctx context.Context, period string, limit int) (*UsageHistory, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out UsageHistory
	if err := c.do(ctx, http.MethodGet, "/usage/history", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAnalytics is admin only.
func (c *Client) GetAnalytics(ctx context.Context, period string, days int) (*Analytics, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var out Analytics
	if err := c.do(ctx, http.MethodGet, "/usage/analytics", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetUserUsage is admin only.
func (c *Client) ResetUserUsage(ctx context.Context, userID, period string) (*ResetResponse, error) {
	var out ResetResponse
	body := map[string]string{"period": period}
	if err := c.do(ctx, http.MethodPost, "/usage/reset/"+url.PathEscape(userID), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ==================== Subscriptions ====================

func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var out []Plan
	if err := c.do(ctx, http.MethodGet, "/subscriptions/plans", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCurrentSubscription(ctx context.Context) (*CurrentSubscription, error) {
	var out CurrentSubscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/current", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSubscription(ctx context.Context, tier Tier, paymentMethodID string) (*UpdateResult, error) {
	body := map[string]string{"tier": string(tier)}
	if paymentMethodID != "" {
		body["paymentMethodId"] = paymentMethodID
	}
	var out UpdateResult
	if err := c.do(ctx, http.MethodPost, "/subscriptions/update", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelSubscription(ctx context.Context, reason string) (*CancelResult, error) {
	var out CancelResult
	if err := c.do(ctx, http.MethodPost, "/subscriptions/cancel", nil, map[string]string{"reason": reason}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSubscriptionHistory(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []*HistoryEntry
	if err := c.do(ctx, http.MethodGet, "/subscriptions/history", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSubscriptionAnalytics is admin only.
func (c *Client) GetSubscriptionAnalytics(ctx context.Context, period string) (*SubscriptionAnalytics, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}
	var out SubscriptionAnalytics
	if err := c.do(ctx, http.MethodGet, "/subscriptions/analytics", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ==================== Gated actions ====================

func (c *Client) Chat(ctx context.Context, message string) (*ChatReply, error) {
	return c.ask(ctx, "/ai/chat", message)
}

func (c *Client) SymptomCheck(ctx context.Context, message string) (*ChatReply, error) {
	return c.ask(ctx, "/ai/symptom", message)
}

func (c *Client) ask(ctx context.Context, path, message string) (*ChatReply, error) {
	var out ChatReply
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"message": message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BookAppointment(ctx context.Context, req BookRequest) (*Appointment, error) {
	var out Appointment
	if err := c.do(ctx, http.MethodPost, "/appointments", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAppointments(ctx context.Context) ([]*Appointment, error) {
	var out []*Appointment
	if err := c.do(ctx, http.MethodGet, "/appointments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelAppointment(ctx context.Context, id string) (*Appointment, error) {
	var out Appointment
	if err := c.do(ctx, http.MethodPost, "/appointments/"+url.PathEscape(id)+"/cancel", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ==================== Admin ====================

func (c *Client) ListUsersWithSubscriptions(ctx context.Context, q ListQuery) (*UserList, error) {
	v := url.Values{}
	setPage(v, q)
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Tier != "" {
		v.Set("tier", q.Tier)
	}
	var out UserList
	if err := c.do(ctx, http.MethodGet, "/admin/users-with-subscriptions", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChangeUserPlan(ctx context.Context, userID string, tier Tier, reason string) (*PlanChangeLog, error) {
	body := map[string]string{"userId": userID, "newTier": string(tier), "reason": reason}
	var out PlanChangeLog
	if err := c.do(ctx, http.MethodPost, "/admin/change-user-plan", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BulkChangePlans(ctx context.Context, userIDs []string, tier Tier, reason string) (*BulkChangeResult, error) {
	body := map[string]interface{}{"userIds": userIDs, "newTier": tier, "reason": reason}
	var out BulkChangeResult
	if err := c.do(ctx, http.MethodPost, "/admin/bulk-change-plans", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PlanChangeLogs(ctx context.Context, q ListQuery) (*LogList, error) {
	v := url.Values{}
	setPage(v, q)
	if q.UserID != "" {
		v.Set("userId", q.UserID)
	}
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	var out LogList
	if err := c.do(ctx, http.MethodGet, "/admin/plan-change-logs", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubscriptionStats(ctx context.Context) (*SubscriptionStats, error) {
	var out SubscriptionStats
	if err := c.do(ctx, http.MethodGet, "/admin/subscription-stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func setPage(v url.Values, q ListQuery) {
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
}
