package http

import (
	"context"
	"net/http"

	"fincast/internal/core"
	"fincast/internal/middleware/trace"
)

// computation runs one analysis call under the request timeout.
func (s *Server) computation(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, p QueryParams) (any, error)) {
	p, err := ParseQueryParams(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	out, err := fn(ctx, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	s.computation(w, r, func(ctx context.Context, p QueryParams) (any, error) {
		res, err := s.analyzer.Forecast(ctx, p.UserID, p.AsOf)
		return res.Rounded(), err
	})
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	s.computation(w, r, func(ctx context.Context, p QueryParams) (any, error) {
		res, err := s.analyzer.Simulate(ctx, p.UserID, p.AsOf)
		return res.Rounded(), err
	})
}

// BudgetsResponse is the body of the budgets route.
type BudgetsResponse struct {
	Budgets       []core.BudgetProjection   `json:"budgets"`
	Opportunities []core.SavingsOpportunity `json:"savings_opportunities"`
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	s.computation(w, r, func(ctx context.Context, p QueryParams) (any, error) {
		budgets, opps, err := s.analyzer.Budgets(ctx, p.UserID, p.AsOf)
		if err != nil {
			return nil, err
		}
		rounded := core.Report{Budgets: budgets, Opportunities: opps}.Rounded()
		return BudgetsResponse{Budgets: rounded.Budgets, Opportunities: rounded.Opportunities}, nil
	})
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	s.computation(w, r, func(ctx context.Context, p QueryParams) (any, error) {
		plan, err := s.analyzer.Allocate(ctx, p.UserID, p.AsOf, p.Strategy)
		return plan.Rounded(), err
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.computation(w, r, func(ctx context.Context, p QueryParams) (any, error) {
		report, err := s.analyzer.Report(ctx, p.UserID, p.AsOf, p.Strategy)
		return report.Rounded(), err
	})
}

// InvalidateResponse reports how many cached snapshots were dropped.
type InvalidateResponse struct {
	UserID  string `json:"user_id"`
	Dropped int    `json:"dropped"`
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUserID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InvalidateResponse{
		UserID:  id,
		Dropped: s.analyzer.Invalidate(r.Context(), id),
	})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"strategies": s.strategies})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:     "rate limit exceeded, retry later",
		Code:      CodeRateLimited,
		RequestID: trace.GetRequestID(r.Context()),
	})
}
