// Package experiment drives complete runs from a resolved scenario: the
// step/convergence loop with cancellation, telemetry capture, run metrics
// and post-run analysis. Sweeps and ensembles run several experiments
// concurrently.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/fgmsim/internal/analysis"
	"github.com/san-kum/fgmsim/internal/config"
	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/metrics"
	"github.com/san-kum/fgmsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

// Outcome is everything a finished run produced.
type Outcome struct {
	Scenario       *config.Scenario
	Result         *sim.Result
	Telemetry      []dynamo.Telemetry
	Metrics        map[string]float64
	Profile        []analysis.MaterialProfile
	Stratification float64
	Elapsed        time.Duration
}

type Experiment struct {
	scenario  *config.Scenario
	logger    *log.Logger
	metrics   []metrics.Metric
	observers []sim.Observer
	logEvery  int
}

type Option func(*Experiment)

func WithLogger(l *log.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithMetrics(m ...metrics.Metric) Option {
	return func(e *Experiment) { e.metrics = append(e.metrics, m...) }
}

func WithObserver(o sim.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, o) }
}

// WithLogEvery sets how many steps pass between progress lines.
func WithLogEvery(n int) Option {
	return func(e *Experiment) { e.logEvery = n }
}

func New(s *config.Scenario, opts ...Option) *Experiment {
	e := &Experiment{
		scenario: s,
		logger:   log.New(io.Discard),
		logEvery: 100,
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(e.metrics) == 0 {
		e.metrics = metrics.Defaults()
	}
	return e
}

// Run executes the scenario until it converges, fails or ctx is done. A
// canceled run returns an error matching both dynamo.ErrCanceled and the
// context error.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	s := e.scenario
	start := time.Now()
	out := &Outcome{Scenario: s, Metrics: make(map[string]float64)}

	for _, m := range e.metrics {
		m.Reset()
	}

	ctl := sim.New(sim.WithObserver(sim.ObserverFunc(func(t dynamo.Telemetry) {
		out.Telemetry = append(out.Telemetry, t)
		for _, m := range e.metrics {
			m.Observe(t)
		}
	})))
	for _, o := range e.observers {
		ctl.AddObserver(o)
	}

	if err := ctl.Initialize(s.Seeds, s.Domain, s.Materials, s.Params); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", s.Name, err)
	}
	e.logger.Info("initialized", "scenario", s.Name, "particles", len(ctl.Particles()),
		"materials", len(s.Materials), "omega", s.Params.Omega)

	for ctl.State() != dynamo.Converged {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("canceled", "iteration", ctl.Iteration())
			return out, fmt.Errorf("%w: %w", dynamo.ErrCanceled, err)
		}

		t, err := ctl.Step()
		if err != nil {
			var div *dynamo.DivergenceError
			if errors.As(err, &div) {
				e.logger.Error("diverged", "iteration", div.Iteration, "particle", div.Particle,
					"quantity", div.Quantity, "value", div.Value)
			}
			return out, err
		}
		if e.logEvery > 0 && t.Iteration%e.logEvery == 0 {
			e.logger.Debug("step", "iteration", t.Iteration, "ke", t.KineticEnergy,
				"trend", t.ConvergenceMetric, "density_dev", t.MaxDensityDeviation)
		}

		if _, err := ctl.CheckConvergence(); err != nil {
			return out, err
		}
	}

	res, err := ctl.Finalize(s.Resolution)
	if err != nil {
		return out, err
	}
	out.Result = res

	for _, m := range e.metrics {
		out.Metrics[m.Name()] = m.Value()
	}
	p := s.Params
	out.Profile = analysis.RadialProfile(ctl.Particles(), len(s.Materials), axisOrZ(p), p.Center)
	out.Stratification = analysis.StratificationIndex(out.Profile, s.Materials)
	out.Elapsed = time.Since(start)

	level := log.InfoLevel
	if !res.Converged {
		level = log.WarnLevel
	}
	e.logger.Log(level, "finished", "scenario", s.Name, "iterations", res.Iterations,
		"converged", res.Converged, "reason", res.Reason, "elapsed", out.Elapsed.Round(time.Millisecond))
	return out, nil
}

func axisOrZ(p dynamo.Params) r3.Vec {
	if r3.Norm2(p.Axis) == 0 {
		return r3.Vec{Z: 1}
	}
	return p.Axis
}
