package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hnp-sim/internal/detect"
	"hnp-sim/internal/logging"
	"hnp-sim/internal/topology"
	"hnp-sim/internal/whitefield"
)

// Simulation runs one trial to completion and returns its archived artifacts.
// *whitefield.Manager implements it.
type Simulation interface {
	Run(ctx context.Context, configPath string) (whitefield.Artifacts, error)
}

// Classifier turns a finished trial into a verdict. *detect.Detector implements it.
type Classifier interface {
	Inspect(detect.Evidence) (detect.Result, error)
}

// RunLog records exhausted searches. *detect.RunLog implements it.
type RunLog interface {
	RecordExhausted(iterations int) error
}

// Outcome is the result of the inner search at one sensitivity.
type Outcome struct {
	Sensitivity int            `json:"sensitivity"`
	Iterations  int            `json:"iterations"`
	Detected    bool           `json:"detected"`
	Result      *detect.Result `json:"result,omitempty"`
}

// Report summarises a sweep.
type Report struct {
	Session    string    `json:"session"`
	Outcomes   []Outcome `json:"outcomes"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Trials counts every trial that ran.
func (r Report) Trials() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Iterations
	}
	return n
}

// Option configures a Controller.
type Option func(*Controller)

// WithEvents sends sweep events to w.
func WithEvents(w EventWriter) Option { return func(c *Controller) { c.events = w } }

// WithSession fixes the session id instead of generating one.
func WithSession(id string) Option { return func(c *Controller) { c.session = id } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// Controller runs the outer sensitivity loop and the inner spacing search.
type Controller struct {
	plan       Plan
	renderer   Renderer
	sim        Simulation
	classifier Classifier
	runLog     RunLog
	events     EventWriter
	session    string
	now        func() time.Time

	mu    sync.RWMutex
	state State
	log   *slog.Logger
}

// NewController wires the collaborators of a sweep.
func NewController(plan Plan, r Renderer, sim Simulation, cl Classifier, rl RunLog, opts ...Option) *Controller {
	c := &Controller{
		plan:       plan,
		renderer:   r,
		sim:        sim,
		classifier: cl,
		runLog:     rl,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.session == "" {
		c.session = uuid.NewString()
	}
	c.state.Session = c.session
	return c
}

// Session returns the sweep session id.
func (c *Controller) Session() string { return c.session }

// State returns a snapshot for status reporting.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.state.UpdatedAt = c.now()
	c.mu.Unlock()
}

func (c *Controller) emit(log *slog.Logger, ev Event) {
	if c.events == nil {
		return
	}
	ev.Session = c.session
	if ev.Time.IsZero() {
		ev.Time = c.now()
	}
	if err := c.events.WriteEvent(ev); err != nil {
		log.Warn("event write failed", "kind", ev.Kind, "err", err)
	}
}

// Poll reports a status query of the in-flight trial. Wire it to
// whitefield.Manager.OnPoll. Failures are logged with the logger of the running
// sweep.
func (c *Controller) Poll(attempt int) {
	c.update(func(s *State) { s.Polls = attempt + 1 })
	st := c.State()
	c.mu.RLock()
	log := c.log
	c.mu.RUnlock()
	c.emit(log, Event{
		Kind:        EventPoll,
		Sensitivity: st.Sensitivity,
		Iteration:   st.Iteration,
		Attempt:     attempt,
		ConfigPath:  st.ConfigPath,
	})
}

// Run executes the sweep. Every sensitivity is searched even after a detection at
// an earlier one. A render, simulation or classification failure aborts the sweep.
// On cancellation the in-flight trial is finished and Run returns ctx.Err().
func (c *Controller) Run(ctx context.Context) (Report, error) {
	log := logging.FromContext(ctx).With("session", c.session)
	ctx = logging.NewContext(ctx, log)
	c.mu.Lock()
	c.log = log
	c.mu.Unlock()

	rep := Report{Session: c.session, StartedAt: c.now()}
	if err := c.plan.Validate(); err != nil {
		return rep, fmt.Errorf("sweep plan: %w", err)
	}
	c.update(func(s *State) {
		s.Running = true
		s.StartedAt = rep.StartedAt
	})
	c.emit(log, Event{Kind: EventSweepStarted, Topology: c.plan.Baseline})
	log.Info("sweep started",
		"from", c.plan.SensitivityStart, "to", c.plan.SensitivityEnd, "baseline", c.plan.Baseline)

	err := c.sweep(ctx, &rep)
	rep.FinishedAt = c.now()
	c.update(func(s *State) {
		s.Running = false
		if err != nil {
			s.Err = err.Error()
		}
	})
	fin := Event{Kind: EventSweepFinished}
	if err != nil {
		fin.Err = err.Error()
	}
	c.emit(log, fin)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("sweep cancelled", "trials", rep.Trials())
		} else {
			log.Error("sweep aborted", "trials", rep.Trials(), "err", err)
		}
		return rep, err
	}
	log.Info("sweep finished", "trials", rep.Trials(), "duration", rep.FinishedAt.Sub(rep.StartedAt))
	return rep, nil
}

func (c *Controller) sweep(ctx context.Context, rep *Report) error {
	for _, sens := range c.plan.Sensitivities() {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := c.search(ctx, sens)
		if out.Iterations > 0 {
			rep.Outcomes = append(rep.Outcomes, out)
		}
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

// search runs the inner loop for one sensitivity.
func (c *Controller) search(ctx context.Context, sens int) (Outcome, error) {
	log := logging.FromContext(ctx).With("sensitivity", sens)
	ctx = logging.NewContext(ctx, log)
	out := Outcome{Sensitivity: sens}

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := c.trial(ctx, sens, iteration)
		if err != nil {
			return out, err
		}
		out.Iterations = iteration
		if res.Detected {
			out.Detected = true
			out.Result = &res
			log.Info("hidden node problem detected", "iteration", iteration, "topology", res.Evidence.Topology)
			return out, nil
		}
		if iteration == MaxIterations {
			if err := c.runLog.RecordExhausted(MaxIterations); err != nil {
				return out, fmt.Errorf("record exhaustion: %w", err)
			}
			c.update(func(s *State) { s.Exhausted = append(s.Exhausted, sens) })
			c.emit(log, Event{Kind: EventExhausted, Sensitivity: sens, Iteration: iteration})
			log.Info("hidden node problem not detected", "iterations", iteration)
			return out, nil
		}
	}
}

func (c *Controller) trial(ctx context.Context, sens, iteration int) (detect.Result, error) {
	log := logging.FromContext(ctx).With("iteration", iteration)
	ctx = logging.NewContext(ctx, log)

	topo, err := topology.Scale(c.plan.Baseline, iteration)
	if err != nil {
		return detect.Result{}, err
	}
	cfgPath, err := c.renderer.Render(ctx, c.plan.Trial(sens, iteration), topo)
	if err != nil {
		return detect.Result{}, err
	}
	c.update(func(s *State) {
		s.Sensitivity = sens
		s.Iteration = iteration
		s.Topology = topo
		s.ConfigPath = cfgPath
		s.Polls = 0
	})
	c.emit(log, Event{Kind: EventTrialStarted, Sensitivity: sens, Iteration: iteration, Topology: topo, ConfigPath: cfgPath})
	log.Info("trial started", "config", cfgPath, "topology", topo)

	arts, err := c.sim.Run(ctx, cfgPath)
	if err != nil {
		c.emit(log, Event{Kind: EventTrialFinished, Sensitivity: sens, Iteration: iteration, ConfigPath: cfgPath, Err: err.Error()})
		return detect.Result{}, fmt.Errorf("trial %s: %w", cfgPath, err)
	}
	res, err := c.classifier.Inspect(detect.Evidence{
		Sensitivity: sens,
		Topology:    topo,
		Iteration:   iteration,
		Artifacts:   arts,
	})
	if err != nil {
		return detect.Result{}, fmt.Errorf("classify %s: %w", cfgPath, err)
	}
	c.update(func(s *State) { s.Trials++ })
	paths := arts.AbsPaths()
	c.emit(log, Event{
		Kind:        EventTrialFinished,
		Sensitivity: sens,
		Iteration:   iteration,
		Topology:    topo,
		ConfigPath:  cfgPath,
		Detected:    res.Detected,
		Artifacts:   paths,
	})
	if res.Detected {
		c.update(func(s *State) {
			s.Detections = append(s.Detections, Detection{
				Sensitivity: sens, Iteration: iteration, Topology: topo, Artifacts: paths, Time: res.Time,
			})
		})
		c.emit(log, Event{Kind: EventDetected, Sensitivity: sens, Iteration: iteration, Topology: topo, Detected: true, Artifacts: paths, Time: res.Time})
	}
	return res, nil
}
