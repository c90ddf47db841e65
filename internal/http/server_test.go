package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincast/internal/core"
)

type fakeAnalyzer struct {
	err         error
	lastUser    string
	lastAsOf    time.Time
	lastStrat   string
	invalidated []string
}

func (f *fakeAnalyzer) record(userID string, asOf time.Time, strategy string) {
	f.lastUser, f.lastAsOf, f.lastStrat = userID, asOf, strategy
}

func (f *fakeAnalyzer) Forecast(_ context.Context, userID string, asOf time.Time) (core.ForecastResult, error) {
	f.record(userID, asOf, "")
	return core.ForecastResult{PredictedExpenses: 1234.5678, Method: "trimmed_mean"}, f.err
}

func (f *fakeAnalyzer) Simulate(_ context.Context, userID string, asOf time.Time) (core.ShockSimulationResult, error) {
	f.record(userID, asOf, "")
	return core.ShockSimulationResult{ShockCapacity: 10.006, ResilienceLabel: core.LabelSafe}, f.err
}

func (f *fakeAnalyzer) Budgets(_ context.Context, userID string, asOf time.Time) ([]core.BudgetProjection, []core.SavingsOpportunity, error) {
	f.record(userID, asOf, "")
	if f.err != nil {
		return nil, nil, f.err
	}
	return []core.BudgetProjection{{Category: "dining", AdaptiveBudget: 99.999}}, []core.SavingsOpportunity{}, nil
}

func (f *fakeAnalyzer) Allocate(_ context.Context, userID string, asOf time.Time, strategy string) (core.AllocationPlan, error) {
	f.record(userID, asOf, strategy)
	return core.AllocationPlan{Strategy: strategy, Capacity: 1000}, f.err
}

func (f *fakeAnalyzer) Report(_ context.Context, userID string, asOf time.Time, strategy string) (core.Report, error) {
	f.record(userID, asOf, strategy)
	return core.Report{
		Snapshot:   core.Snapshot{UserID: userID, Period: core.PeriodKey(asOf)},
		Allocation: core.AllocationPlan{Strategy: strategy, Capacity: 333.333},
	}, f.err
}

func (f *fakeAnalyzer) Invalidate(_ context.Context, userID string) int {
	f.invalidated = append(f.invalidated, userID)
	return 2
}

var fixedNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg Config) (*Server, *fakeAnalyzer) {
	t.Helper()
	fa := &fakeAnalyzer{}
	srv, err := NewServer(cfg, fa, nil)
	require.NoError(t, err)
	srv.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, fa
}

func do(srv *Server, method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestReport(t *testing.T) {
	srv, fa := newTestServer(t, Config{})

	rr := do(srv, http.MethodGet, "/v1/users/u-1/report?as_of=2025-02-10&strategy=tiered")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	var body struct {
		UserID     string `json:"user_id"`
		Period     string `json:"period"`
		Allocation struct {
			Strategy string  `json:"strategy"`
			Capacity float64 `json:"capacity"`
		} `json:"allocation"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "u-1", body.UserID)
	assert.Equal(t, "2025-02", body.Period)
	assert.Equal(t, "tiered", body.Allocation.Strategy)
	assert.Equal(t, 333.33, body.Allocation.Capacity)

	assert.Equal(t, time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC), fa.lastAsOf)
}

func TestComputationRoutes(t *testing.T) {
	srv, fa := newTestServer(t, Config{})

	tests := []struct {
		path string
		want string
	}{
		{"/v1/users/u-1/forecast", `"predicted_expenses":1234.57`},
		{"/v1/users/u-1/simulation", `"shock_capacity":10.01`},
		{"/v1/users/u-1/budgets", `"adaptive_budget":100`},
		{"/v1/users/u-1/allocation?strategy=emergency_first", `"strategy":"emergency_first"`},
	}
	for _, tt := range tests {
		rr := do(srv, http.MethodGet, tt.path)
		require.Equal(t, http.StatusOK, rr.Code, tt.path)
		assert.Contains(t, rr.Body.String(), tt.want, tt.path)
	}
	assert.Equal(t, fixedNow, fa.lastAsOf, "as_of defaults to now")
	assert.Contains(t, do(srv, http.MethodGet, "/v1/users/u-1/budgets").Body.String(), `"savings_opportunities":[]`)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   string
		wantCode int
		wantBody string
	}{
		{"not found", fmt.Errorf("load: %w", core.ErrUserNotFound), "/v1/users/ghost/report", http.StatusNotFound, CodeUserNotFound},
		{"invalid", &core.ValidationError{Field: "AsOf", Reason: "is required"}, "/v1/users/u-1/forecast", http.StatusUnprocessableEntity, CodeInvalidContext},
		{"unknown strategy", fmt.Errorf("%w: greedy", core.ErrUnknownStrategy), "/v1/users/u-1/allocation?strategy=greedy", http.StatusBadRequest, CodeUnknownStrategy},
		{"failed", fmt.Errorf("simulate: %w", core.ErrComputationFailed), "/v1/users/u-1/simulation", http.StatusInternalServerError, "internal error"},
		{"bad as_of", nil, "/v1/users/u-1/report?as_of=yesterday", http.StatusBadRequest, CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, fa := newTestServer(t, Config{})
			fa.err = tt.err

			rr := do(srv, http.MethodGet, tt.target)
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, rr.Header().Get("X-Request-ID"), body.RequestID)
		})
	}
}

func TestStatusFor(t *testing.T) {
	status, code := StatusFor(context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, CodeTimeout, code)

	status, _ = StatusFor(fmt.Errorf("run: %w", context.Canceled))
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = StatusFor(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestInvalidateAndStrategies(t *testing.T) {
	srv, fa := newTestServer(t, Config{Strategies: []string{"emergency_first", "tiered", "weighted"}})

	rr := do(srv, http.MethodPost, "/v1/users/u-1/invalidate")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":"u-1","dropped":2}`, rr.Body.String())
	assert.Equal(t, []string{"u-1"}, fa.invalidated)

	rr = do(srv, http.MethodGet, "/v1/users/u-1/invalidate")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(srv, http.MethodGet, "/v1/strategies")
	assert.JSONEq(t, `{"strategies":["emergency_first","tiered","weighted"]}`, rr.Body.String())
}

func TestRateLimitAndScreening(t *testing.T) {
	srv, _ := newTestServer(t, Config{RequestsPerMinute: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/v1/strategies").Code)
	}
	rr := do(srv, http.MethodGet, "/v1/strategies")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), CodeRateLimited)

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz").Code, "probes are not limited")

	rr = do(srv, http.MethodGet, "/v1/users/u-1/report?strategy=%3Cscript%3E")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestParseUserID(t *testing.T) {
	id, err := ParseUserID("  u-1 ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	for _, raw := range []string{"", "   ", strings.Repeat("x", maxUserIDLength+1), "u\x01"} {
		_, err := ParseUserID(raw)
		assert.ErrorIs(t, err, errBadRequest, "%q", raw)
	}
}

func TestNewServer_InvalidProxy(t *testing.T) {
	_, err := NewServer(Config{TrustedProxies: []string{"nope"}}, &fakeAnalyzer{}, nil)
	assert.Error(t, err)
}
