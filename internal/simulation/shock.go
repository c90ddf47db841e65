package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"fincast/internal/core"
	"fincast/internal/forecast"
	"fincast/internal/stats"
)

// Solvency levels the shock thresholds are inverted at.
const (
	SafeSolvency    = 0.95
	RiskSolvency    = 0.50
	FailureSolvency = 0.10
)

const (
	shockSearchMultiple = 3.0
	shockSearchTol      = 0.005
	shockSearchMaxIter  = 200
	minParallelDraws    = 100
	// chunks poll the context every this many draws
	cancelCheckEvery = 256
)

// Config tunes the shock simulator.
type Config struct {
	// SimulationCount is the number of Monte Carlo draws (default: 1000)
	SimulationCount int

	// ConfidencePercentiles are the simulated-expense percentiles reported (default: 25, 50, 90)
	ConfidencePercentiles []float64

	// DepletionBalanceThreshold is the balance below which depletion is flagged (default: 2000)
	DepletionBalanceThreshold float64

	// DepletionDaysAhead is the burn-rate look-ahead window (default: 10)
	DepletionDaysAhead int

	// SafetyBufferRatio is the share of income a solvent month must keep (default: 0.10)
	SafetyBufferRatio float64

	// Seed fixes the random stream. Zero reseeds on every call.
	Seed uint64

	// Workers is the number of parallel draw chunks (default: 4)
	Workers int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SimulationCount:           1000,
		ConfidencePercentiles:     []float64{25, 50, 90},
		DepletionBalanceThreshold: 2000,
		DepletionDaysAhead:        10,
		SafetyBufferRatio:         0.10,
		Workers:                   4,
	}
}

// ShockSimulator estimates how large an unplanned expense a user can absorb.
type ShockSimulator struct {
	cfg    Config
	filter forecast.OutlierFilter
	now    func() time.Time
}

func NewShockSimulator(cfg Config, filter forecast.OutlierFilter) *ShockSimulator {
	def := DefaultConfig()
	if cfg.SimulationCount < 1 {
		cfg.SimulationCount = def.SimulationCount
	}
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.DepletionDaysAhead < 0 {
		cfg.DepletionDaysAhead = 0
	}
	if len(cfg.ConfidencePercentiles) == 0 {
		cfg.ConfidencePercentiles = def.ConfidencePercentiles
	}
	return &ShockSimulator{cfg: cfg, filter: filter, now: time.Now}
}

// Simulate runs the simulation for fc given its surplus forecast. The result
// is unrounded; identical inputs and a non-zero seed reproduce it exactly.
func (s *ShockSimulator) Simulate(ctx context.Context, fc core.FinancialContext, forecastRes core.ForecastResult) (core.ShockSimulationResult, error) {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = uint64(s.now().UnixNano())
	}

	fit := FitExpenses(fc, forecastRes, s.filter)
	draws, err := s.draw(ctx, fit, seed)
	if err != nil {
		return core.ShockSimulationResult{}, err
	}

	income := fc.MonthlyIncome()
	start := fc.LiquidBalance() + income
	balances := make([]float64, len(draws))
	for i, d := range draws {
		balances[i] = start - d
	}
	sort.Float64s(balances)
	sort.Float64s(draws)

	inv := solvencyCurve{
		balances: balances,
		buffer:   s.cfg.SafetyBufferRatio * income,
		limit:    shockSearchMultiple * income,
	}
	safe := inv.largestShock(SafeSolvency)
	risk := inv.largestShock(RiskSolvency)
	failure := inv.largestShock(FailureSolvency)

	score := int(math.Round(100 * math.Min(safe/math.Max(income, 1), 1)))
	median := stats.Percentile(balances, 0.5)

	lookahead := fc.LiquidBalance() - fc.CurrentMonthSpend()/float64(fc.DayOfMonthElapsed())*float64(s.cfg.DepletionDaysAhead)

	pct := make(map[string]float64, len(s.cfg.ConfidencePercentiles))
	for _, p := range s.cfg.ConfidencePercentiles {
		pct[percentileKey(p)] = stats.Percentile(draws, p/100)
	}

	return core.ShockSimulationResult{
		ShockCapacity:       safe,
		SafeShockLimit:      safe,
		RiskThreshold:       risk,
		FailureThreshold:    failure,
		ResilienceScore:     score,
		ResilienceLabel:     core.LabelForScore(score),
		DepletionRiskFlag:   median < s.cfg.DepletionBalanceThreshold || lookahead < s.cfg.DepletionBalanceThreshold,
		ConfidenceBandLow:   stats.Percentile(balances, 0.05),
		ConfidenceBandHigh:  stats.Percentile(balances, 0.95),
		ProjectedEndBalance: median,
		LookaheadBalance:    lookahead,
		ExpensePercentiles:  pct,
		Distribution:        string(fit.Source),
		SimulationCount:     len(draws),
		Seed:                seed,
	}, nil
}

// draw fills SimulationCount samples. Each chunk owns a PCG stream seeded by
// (seed, chunk) and writes a fixed slice range, so the output does not depend
// on goroutine scheduling.
func (s *ShockSimulator) draw(ctx context.Context, fit GammaFit, seed uint64) ([]float64, error) {
	n := s.cfg.SimulationCount
	chunks := s.cfg.Workers
	if n < minParallelDraws || chunks > n {
		chunks = 1
	}

	out := make([]float64, n)
	per := n / chunks
	g, ctx := errgroup.WithContext(ctx)
	for c := 0; c < chunks; c++ {
		lo := c * per
		hi := lo + per
		if c == chunks-1 {
			hi = n
		}
		g.Go(func() error {
			next := fit.sampler(rand.NewPCG(seed, uint64(c)))
			for i := lo; i < hi; i++ {
				if (i-lo)%cancelCheckEvery == 0 {
					if err := ctx.Err(); err != nil {
						return fmt.Errorf("simulation cancelled: %w", err)
					}
				}
				out[i] = math.Max(next(), 0)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// solvencyCurve answers solvency-fraction queries over sorted baseline
// balances.
type solvencyCurve struct {
	balances []float64
	buffer   float64
	limit    float64
}

// fraction is the share of draws still holding the buffer after shock.
// It is non-increasing in shock.
func (c solvencyCurve) fraction(shock float64) float64 {
	n := len(c.balances)
	if n == 0 {
		return 0
	}
	idx := sort.SearchFloat64s(c.balances, c.buffer+shock)
	return float64(n-idx) / float64(n)
}

// largestShock binary-searches the largest shock in [0, limit] whose solvency
// fraction is at least level.
func (c solvencyCurve) largestShock(level float64) float64 {
	if c.limit <= 0 || c.fraction(0) < level {
		return 0
	}
	if c.fraction(c.limit) >= level {
		return c.limit
	}
	lo, hi := 0.0, c.limit
	for i := 0; i < shockSearchMaxIter && hi-lo > shockSearchTol; i++ {
		mid := lo + (hi-lo)/2
		if c.fraction(mid) >= level {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

func percentileKey(p float64) string {
	if p == math.Trunc(p) {
		return fmt.Sprintf("p%d", int(p))
	}
	return fmt.Sprintf("p%g", p)
}
