package scheduler

import (
	"errors"
	"strconv"
	"time"

	"repeat/internal/executor"
	"repeat/internal/interval"
)

var (
	ErrNoCommand = errors.New("no command was given")
	ErrNoRunner  = errors.New("scheduler requires a runner")
)

// Policy decides how many firings happen before the loop stops on its own.
type Policy struct {
	Unlimited bool
	Count     uint64
}

func Unlimited() Policy         { return Policy{Unlimited: true} }
func Fixed(count uint64) Policy { return Policy{Count: count} }

func (p Policy) String() string {
	if p.Unlimited {
		return "unlimited"
	}
	return strconv.FormatUint(p.Count, 10)
}

// done reports whether fired satisfies the policy. Fixed(0) is never done:
// the count is only compared after a firing.
func (p Policy) done(fired uint64) bool {
	return !p.Unlimited && fired == p.Count
}

// Config is the immutable run configuration handed to the scheduler.
type Config struct {
	Command  executor.Command
	Interval interval.Spec
	Policy   Policy

	// PollInterval bounds how often the clock is sampled while waiting.
	// Zero polls without pausing.
	PollInterval time.Duration
}

// DefaultPollInterval keeps second-level intervals accurate without spinning a core.
const DefaultPollInterval = 10 * time.Millisecond

func (c Config) Validate() error {
	if c.Command.Path == "" || len(c.Command.Argv) == 0 {
		return ErrNoCommand
	}
	if err := c.Interval.Validate(); err != nil {
		return err
	}
	if c.PollInterval < 0 {
		return errors.New("poll interval must be >= 0")
	}
	return nil
}

// Runner executes the command once and blocks until the child is gone.
type Runner interface {
	Run(cmd executor.Command) executor.Outcome
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(cmd executor.Command) executor.Outcome

func (f RunnerFunc) Run(cmd executor.Command) executor.Outcome { return f(cmd) }

// State is the loop's position in its state machine.
type State int32

const (
	StateIdle State = iota
	StateWaiting
	StateFiring
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateFiring:
		return "firing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ExecutionState is owned by the loop goroutine.
type ExecutionState struct {
	LastFire time.Time
	Fired    uint64
}

// Firing is reported to observers after every executor call.
type Firing struct {
	Seq     uint64
	At      time.Time
	Command executor.Command
	Outcome executor.Outcome
	// Remaining is the number of firings left, or 0 when unlimited.
	Remaining uint64
}

// Observer is notified synchronously after each firing.
type Observer interface {
	ObserveFiring(f Firing)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f Firing)

func (f ObserverFunc) ObserveFiring(fr Firing) { f(fr) }
