// Package rating implements the Glicko-2-style skill rating math used for
// per-domain vibe levels. It is a pure computation package: no I/O, no
// persistence, every function deterministic in its inputs.
//
// The model is self-referential: there is no opponent, so the expected
// outcome is computed against the user's own prior estimate observed
// through a configured baseline deviation. A performance score of 0.5
// means "performed as expected" and moves the level very little; scores
// above or below shift it proportionally to the current uncertainty and
// the session's domain impact.
package rating

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// glickoScale converts between the public rating scale and the internal
// Glicko-2 scale (mu/phi).
const glickoScale = 173.7178

const (
	convergenceTolerance = 1e-6
	maxIterations        = 100
)

// ErrInvalidScore indicates a performance score outside [0,1].
var ErrInvalidScore = errors.New("performance score must be in [0,1]")

// ErrInvalidImpact indicates a domain impact outside (0,1].
var ErrInvalidImpact = errors.New("domain impact must be in (0,1]")

// ErrNotFinite indicates the update produced a non-finite intermediate
// value; callers must discard the result and keep the stored state.
var ErrNotFinite = errors.New("rating update produced a non-finite value")

// Config holds the tunable parameters of the rating system. All values are
// design choices, not contractual constants; DefaultConfig documents the
// defaults the engine ships with.
type Config struct {
	InitialLevel      float64
	InitialRD         float64
	InitialVolatility float64

	// Tau constrains volatility drift; smaller values damp rating swings.
	Tau float64

	// BaselineRD is the deviation of the implicit "opponent" (the user's
	// own expectation) when computing the expected outcome.
	BaselineRD float64

	// RatingPeriod is the interval after which one full decay period has
	// elapsed; DecayThreshold is the inactivity span after which decay is
	// applied at all.
	RatingPeriod   time.Duration
	DecayThreshold time.Duration

	// Bounds. RD is clamped to [MinRD, MaxRD], volatility to
	// [MinVolatility, MaxVolatility], and the level to [MinLevel, MaxLevel].
	MinRD         float64
	MaxRD         float64
	MinVolatility float64
	MaxVolatility float64
	MinLevel      float64
	MaxLevel      float64
}

// DefaultConfig returns the recommended parameters: classic Glicko-2 priors
// (1500 / 350 / 0.06) with a day-long rating period and a week of grace
// before inactivity decay kicks in.
func DefaultConfig() Config {
	return Config{
		InitialLevel:      1500,
		InitialRD:         350,
		InitialVolatility: 0.06,
		Tau:               0.5,
		BaselineRD:        150,
		RatingPeriod:      24 * time.Hour,
		DecayThreshold:    7 * 24 * time.Hour,
		MinRD:             30,
		MaxRD:             350,
		MinVolatility:     0.01,
		MaxVolatility:     0.1,
		MinLevel:          100,
		MaxLevel:          4000,
	}
}

// State is one (level, RD, volatility) triple.
type State struct {
	Level      float64
	RD         float64
	Volatility float64
}

// Engine applies rating updates under a fixed Config.
type Engine struct {
	cfg Config
}

// NewEngine constructs an Engine. A zero Tau or RatingPeriod falls back to
// the defaults so that a partially populated Config stays usable.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Tau <= 0 {
		cfg.Tau = def.Tau
	}
	if cfg.RatingPeriod <= 0 {
		cfg.RatingPeriod = def.RatingPeriod
	}
	if cfg.BaselineRD <= 0 {
		cfg.BaselineRD = def.BaselineRD
	}
	if cfg.DecayThreshold <= 0 {
		cfg.DecayThreshold = def.DecayThreshold
	}
	if cfg.MinVolatility <= 0 {
		cfg.MinVolatility = def.MinVolatility
	}
	if cfg.MaxVolatility <= 0 {
		cfg.MaxVolatility = def.MaxVolatility
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's parameters.
func (e *Engine) Config() Config { return e.cfg }

// NewState returns the default priors for a domain a user has never
// trained in.
func (e *Engine) NewState() State {
	return State{
		Level:      e.cfg.InitialLevel,
		RD:         e.cfg.InitialRD,
		Volatility: e.cfg.InitialVolatility,
	}
}

// NeedsDecay reports whether a domain idle since lastUpdated should receive
// an uncertainty decay before the next outcome is applied.
func (e *Engine) NeedsDecay(lastUpdated, now time.Time) bool {
	if lastUpdated.IsZero() {
		return false
	}
	return now.Sub(lastUpdated) >= e.cfg.DecayThreshold
}

// Decay grows RD toward MaxRD as a function of elapsed rating periods,
// modeling rising uncertainty while a domain goes untrained. The level and
// volatility are unchanged. RD is monotonically non-decreasing in elapsed
// time and never exceeds MaxRD.
func (e *Engine) Decay(s State, elapsed time.Duration) State {
	if elapsed <= 0 {
		return s
	}
	periods := elapsed.Seconds() / e.cfg.RatingPeriod.Seconds()
	phi := s.RD / glickoScale
	sigma := s.Volatility
	newPhi := math.Sqrt(phi*phi + sigma*sigma*periods)
	s.RD = clamp(newPhi*glickoScale, e.cfg.MinRD, e.cfg.MaxRD)
	return s
}

// Update applies one session outcome to a state.
//
// performanceScore is the normalized [0,1] signal of how the session
// compared to the user's expected performance; domainImpact in (0,1]
// weights how strongly the session affects this domain. The returned state
// honors all configured bounds. Invalid inputs or non-finite intermediates
// return an error and the caller must keep the prior state untouched.
func (e *Engine) Update(s State, performanceScore, domainImpact float64) (State, error) {
	if math.IsNaN(performanceScore) || performanceScore < 0 || performanceScore > 1 {
		return s, fmt.Errorf("%w: %v", ErrInvalidScore, performanceScore)
	}
	if math.IsNaN(domainImpact) || domainImpact <= 0 || domainImpact > 1 {
		return s, fmt.Errorf("%w: %v", ErrInvalidImpact, domainImpact)
	}

	mu := (s.Level - e.cfg.InitialLevel) / glickoScale
	phi := s.RD / glickoScale
	oppMu := mu // self-referential: opponent is the prior expectation
	oppPhi := e.cfg.BaselineRD / glickoScale

	g := gFunc(oppPhi)
	// E collapses to 0.5 when oppMu == mu; kept in full form so the
	// baseline function stays a tunable parameter.
	expected := 1.0 / (1.0 + math.Exp(-g*(mu-oppMu)))

	v := 1.0 / (g * g * expected * (1 - expected))
	delta := v * g * (performanceScore - expected)

	newSigma := e.solveVolatility(s.Volatility, phi, v, delta)
	newSigma = clamp(newSigma, e.cfg.MinVolatility, e.cfg.MaxVolatility)

	phiStar := math.Sqrt(phi*phi + newSigma*newSigma)
	newPhi := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	newMu := mu + domainImpact*newPhi*newPhi*g*(performanceScore-expected)

	out := State{
		Level:      clamp(newMu*glickoScale+e.cfg.InitialLevel, e.cfg.MinLevel, e.cfg.MaxLevel),
		RD:         clamp(newPhi*glickoScale, e.cfg.MinRD, e.cfg.MaxRD),
		Volatility: newSigma,
	}
	if !finite(out.Level) || !finite(out.RD) || !finite(out.Volatility) {
		return s, ErrNotFinite
	}
	return out, nil
}

// solveVolatility runs the Glicko-2 volatility convergence step with a
// bounded Newton-Raphson iteration. The loop never exceeds maxIterations
// regardless of input.
func (e *Engine) solveVolatility(sigma, phi, v, delta float64) float64 {
	a := math.Log(sigma * sigma)
	deltaSq := delta * delta
	phiSq := phi * phi
	tauSq := e.cfg.Tau * e.cfg.Tau

	x := a
	if deltaSq > phiSq+v {
		x = math.Log(deltaSq - phiSq - v)
	}

	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (deltaSq - phiSq - v - ex)
		denom := 2 * math.Pow(phiSq+v+ex, 2)
		return num/denom - (x-a)/tauSq
	}

	for i := 0; i < maxIterations; i++ {
		fx := f(x)
		if math.Abs(fx) < convergenceTolerance {
			break
		}
		const h = 0.001
		df := (f(x+h) - fx) / h
		if math.Abs(df) < convergenceTolerance {
			break
		}
		x -= fx / df
	}

	return math.Exp(x / 2)
}

// gFunc is the Glicko-2 g(phi) dampening function.
func gFunc(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
