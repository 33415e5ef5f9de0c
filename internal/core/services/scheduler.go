package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/metrics"
)

const (
	DefaultCycleInterval = 10 * time.Minute
	defaultStopTimeout   = 30 * time.Second
)

// CycleStep is one pass run inside a scheduler cycle.
type CycleStep interface {
	Name() string
	Execute(ctx context.Context) error
}

type SchedulerConfig struct {
	Interval time.Duration
	// CycleTimeout bounds a whole cycle; defaults to Interval.
	CycleTimeout time.Duration
	// StopTimeout bounds how long Stop waits for an in-flight cycle.
	StopTimeout time.Duration
}

// Scheduler runs the detection and escalation passes on a fixed cadence.
// The next cycle starts Interval after the previous one finished, so cycles
// never overlap.
type Scheduler struct {
	steps  []CycleStep
	cfg    SchedulerConfig
	logger zerolog.Logger

	// cycleMu serialises cycles, including manual RunCycle calls and a
	// lingering cycle from a previous Start.
	cycleMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	cycle   uint64
}

func NewScheduler(cfg SchedulerConfig, logger zerolog.Logger, steps ...CycleStep) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCycleInterval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = cfg.Interval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Scheduler{
		steps:  steps,
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins the loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("scheduler: already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(s.stopCh, s.doneCh)

	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("scheduler: started")
}

// Stop prevents future cycles and waits, up to StopTimeout, for an
// in-flight cycle to finish. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Info().Msg("scheduler: stopped")
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Warn().Dur("timeout", s.cfg.StopTimeout).Msg("scheduler: in-flight cycle still running after stop timeout")
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout)
		_ = s.RunCycle(ctx)
		cancel()

		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunCycle executes every step once, in order. A failing or panicking step
// is logged and does not prevent the following steps from running.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.mu.Lock()
	s.cycle++
	cycle := s.cycle
	s.mu.Unlock()

	log := s.logger.With().Uint64("cycle", cycle).Logger()
	timer := metrics.NewTimer()

	var errs []error
	for _, step := range s.steps {
		if err := runStep(ctx, step); err != nil {
			log.Error().Err(err).Str("step", step.Name()).Msg("scheduler: step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.Name(), err))
		}
	}

	timer.ObserveDuration(metrics.CycleDuration)
	if len(errs) > 0 {
		metrics.CyclesTotal.WithLabelValues("failure").Inc()
		return errors.Join(errs...)
	}
	metrics.CyclesTotal.WithLabelValues("success").Inc()
	log.Debug().Dur("took", timer.Duration()).Msg("scheduler: cycle finished")
	return nil
}

func runStep(ctx context.Context, step CycleStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Execute(ctx)
}

// DetectionStep adapts the detector to the scheduler.
type DetectionStep struct {
	Detector *InactivityDetector
}

func (DetectionStep) Name() string { return "inactivity-detection" }

func (s DetectionStep) Execute(ctx context.Context) error {
	_, err := s.Detector.Run(ctx)
	return err
}

// EscalationStep adapts the escalation engine to the scheduler.
type EscalationStep struct {
	Engine *EscalationEngine
}

func (EscalationStep) Name() string { return "escalation" }

func (s EscalationStep) Execute(ctx context.Context) error {
	_, err := s.Engine.Run(ctx)
	return err
}
