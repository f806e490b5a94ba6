package scheduler

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"repeat/internal/executor"
	"repeat/internal/interval"
	logx "repeat/pkg/logx"
)

// Scheduler drives the repeat loop: wait until the interval is due, run the
// command, update the checkpoint, stop when the policy is satisfied.
type Scheduler struct {
	cfg    Config
	runner Runner
	log    logx.Logger
	now    func() time.Time

	observers []Observer
	state     atomic.Int32
}

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option { return func(s *Scheduler) { s.log = log } }

// WithClock replaces the wall clock. Tests use it to drive time manually.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

func New(cfg Config, runner Runner, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, ErrNoRunner
	}
	s := &Scheduler{
		cfg:    cfg,
		runner: runner,
		log:    logx.Nop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

func (s *Scheduler) setState(st State) { s.state.Store(int32(st)) }

// Run owns the loop until the repeat policy is satisfied (nil) or ctx is
// cancelled between polls (ctx.Err()). A running child is always waited for;
// executor failures never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	var limiter *rate.Limiter
	if s.cfg.PollInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.cfg.PollInterval), 1)
	}

	st := ExecutionState{LastFire: s.now()}
	s.setState(StateWaiting)
	s.log.Debug("loop started",
		logx.String("interval", s.cfg.Interval.String()),
		logx.String("repeats", s.cfg.Policy.String()),
		logx.Duration("poll", s.cfg.PollInterval),
	)

	for {
		if err := ctx.Err(); err != nil {
			s.setState(StateDone)
			return err
		}

		now := s.now()
		if !interval.IsDue(now.Sub(st.LastFire).Seconds(), s.cfg.Interval) {
			if err := pace(ctx, limiter); err != nil {
				s.setState(StateDone)
				return err
			}
			continue
		}

		s.setState(StateFiring)
		out := s.runner.Run(s.cfg.Command)
		// The window is rebased to the due poll whatever the outcome.
		st.LastFire = now
		st.Fired++

		s.report(st, now, out)

		if s.cfg.Policy.done(st.Fired) {
			s.setState(StateDone)
			s.log.Debug("repeat count reached", logx.Uint64("fired", st.Fired))
			return nil
		}
		s.setState(StateWaiting)
	}
}

func (s *Scheduler) report(st ExecutionState, at time.Time, out executor.Outcome) {
	f := Firing{Seq: st.Fired, At: at, Command: s.cfg.Command, Outcome: out}
	if !s.cfg.Policy.Unlimited && s.cfg.Policy.Count > st.Fired {
		f.Remaining = s.cfg.Policy.Count - st.Fired
	}

	fields := []logx.Field{
		logx.Uint64("seq", f.Seq),
		logx.String("outcome", out.Kind.String()),
		logx.Duration("took", out.Finished.Sub(out.Started)),
	}
	switch {
	case out.Kind == executor.SpawnFailed:
		s.log.Warn("firing skipped", append(fields, logx.Err(out.Err))...)
	case out.Signaled():
		s.log.Info("command finished", append(fields, logx.String("signal", out.Signal.String()))...)
	default:
		s.log.Info("command finished", append(fields, logx.Int("exit_code", out.ExitCode))...)
	}

	for _, o := range s.observers {
		o.ObserveFiring(f)
	}
}

func pace(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		runtime.Gosched()
		return nil
	}
	return limiter.Wait(ctx)
}
