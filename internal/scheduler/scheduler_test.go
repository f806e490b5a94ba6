package scheduler

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"

	"repeat/internal/executor"
	"repeat/internal/interval"
)

// fakeClock advances by step on every read.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingRunner struct {
	clock *fakeClock
	calls []time.Time
	out   func(n int) executor.Outcome
	after func(n int)
}

func (r *recordingRunner) Run(cmd executor.Command) executor.Outcome {
	r.calls = append(r.calls, r.clock.Now())
	n := len(r.calls)
	if r.after != nil {
		r.after(n)
	}
	if r.out != nil {
		return r.out(n)
	}
	return executor.Outcome{Kind: executor.Completed}
}

func testConfig(spec interval.Spec, policy Policy) Config {
	return Config{
		Command:  executor.NewCommand("/bin/true", nil),
		Interval: spec,
		Policy:   policy,
	}
}

func TestRunFixedInvokesExactlyN(t *testing.T) {
	t.Parallel()
	for _, n := range []uint64{1, 3, 7} {
		clock := newFakeClock(100 * time.Millisecond)
		r := &recordingRunner{clock: clock}
		s, err := New(testConfig(interval.Spec{Unit: interval.Seconds, Magnitude: 1}, Fixed(n)), r, WithClock(clock.Now))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if uint64(len(r.calls)) != n {
			t.Fatalf("runner called %d times, want %d", len(r.calls), n)
		}
		if s.State() != StateDone {
			t.Fatalf("State = %v, want done", s.State())
		}
	}
}

func TestRunSpacesFiringsByInterval(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(50 * time.Millisecond)
	r := &recordingRunner{clock: clock}
	spec := interval.Spec{Unit: interval.Minutes, Magnitude: 0.05} // 3s
	s, err := New(testConfig(spec, Fixed(4)), r, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	start := clock.Now()
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	prev := start
	for i, at := range r.calls {
		if gap := at.Sub(prev); gap < 3*time.Second {
			t.Fatalf("firing %d only %v after previous checkpoint", i+1, gap)
		}
		prev = at
	}
}

func TestRunZeroMagnitudeFiresEveryPoll(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(0)
	r := &recordingRunner{clock: clock}
	s, err := New(testConfig(interval.Spec{Unit: interval.Days, Magnitude: 0}, Fixed(5)), r, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 5 {
		t.Fatalf("calls = %d, want 5", len(r.calls))
	}
}

func TestRunSpawnFailureCountsAndRebases(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(100 * time.Millisecond)
	r := &recordingRunner{
		clock: clock,
		out: func(n int) executor.Outcome {
			if n == 1 {
				return executor.Outcome{Kind: executor.SpawnFailed, Err: syscall.EAGAIN}
			}
			return executor.Outcome{Kind: executor.Completed}
		},
	}
	var seen []Firing
	obs := ObserverFunc(func(f Firing) { seen = append(seen, f) })

	s, err := New(testConfig(interval.Spec{Unit: interval.Seconds, Magnitude: 1}, Fixed(2)), r,
		WithClock(clock.Now), WithObserver(obs))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("calls = %d, want 2 (spawn failure counts as a firing)", len(r.calls))
	}
	if len(seen) != 2 || seen[0].Outcome.Kind != executor.SpawnFailed {
		t.Fatalf("observer saw %+v", seen)
	}
	// The second firing is measured from the failed attempt's due poll.
	if gap := seen[1].At.Sub(seen[0].At); gap < time.Second || gap > 2*time.Second {
		t.Fatalf("second firing %v after the first, want ~1s", gap)
	}
	if seen[0].Seq != 1 || seen[1].Seq != 2 || seen[0].Remaining != 1 || seen[1].Remaining != 0 {
		t.Fatalf("unexpected sequence bookkeeping: %+v", seen)
	}
}

func TestRunLongCommandRebasesToDuePoll(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(10 * time.Millisecond)
	r := &recordingRunner{clock: clock}
	// The command outlives the interval: the next firing is due right away.
	r.after = func(n int) { clock.Advance(5 * time.Second) }

	var seen []Firing
	s, err := New(testConfig(interval.Spec{Unit: interval.Seconds, Magnitude: 2}, Fixed(2)), r,
		WithClock(clock.Now), WithObserver(ObserverFunc(func(f Firing) { seen = append(seen, f) })))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gap := seen[1].At.Sub(seen[0].At); gap > 6*time.Second {
		t.Fatalf("second firing waited %v, expected it right after the long run", gap)
	}
}

func TestRunUnlimitedStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock(time.Second)
	r := &recordingRunner{clock: clock}
	r.after = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	s, err := New(testConfig(interval.Spec{Unit: interval.Seconds, Magnitude: 1}, Unlimited()), r, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if len(r.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(r.calls))
	}
}

func TestRunFixedZeroNeverCompletes(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock(time.Second)
	r := &recordingRunner{clock: clock}
	r.after = func(n int) {
		if n == 4 {
			cancel()
		}
	}
	s, err := New(testConfig(interval.Spec{Unit: interval.Seconds, Magnitude: 0}, Fixed(0)), r, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if len(r.calls) != 4 {
		t.Fatalf("calls = %d, want 4", len(r.calls))
	}
}

func TestRunPacedPollingHonoursCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cfg := testConfig(interval.Spec{Unit: interval.Hours, Magnitude: 1}, Fixed(1))
	cfg.PollInterval = 20 * time.Millisecond
	calls := 0
	s, err := New(cfg, RunnerFunc(func(executor.Command) executor.Outcome {
		calls++
		return executor.Outcome{}
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(ctx); err == nil {
		t.Fatal("expected an error once the context expires")
	}
	if calls != 0 {
		t.Fatalf("nothing should fire within an hour interval, got %d", calls)
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	r := RunnerFunc(func(executor.Command) executor.Outcome { return executor.Outcome{} })
	if _, err := New(Config{Interval: interval.Spec{Magnitude: 1}}, r); !errors.Is(err, ErrNoCommand) {
		t.Fatalf("err = %v, want ErrNoCommand", err)
	}
	bad := testConfig(interval.Spec{Unit: interval.Seconds, Magnitude: -1}, Fixed(1))
	if _, err := New(bad, r); err == nil {
		t.Fatal("negative magnitude should be rejected")
	}
	if _, err := New(testConfig(interval.Spec{Magnitude: 1}, Fixed(1)), nil); !errors.Is(err, ErrNoRunner) {
		t.Fatalf("err = %v, want ErrNoRunner", err)
	}
}

func TestPolicyString(t *testing.T) {
	t.Parallel()
	if Unlimited().String() != "unlimited" || Fixed(12).String() != "12" {
		t.Fatal("unexpected policy strings")
	}
}

// End to end: one-second interval, three repeats, real child processes.
func TestRunEndToEndThreeSpawns(t *testing.T) {
	if testing.Short() {
		t.Skip("takes about three seconds")
	}
	t.Parallel()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	var (
		mu     sync.Mutex
		spawns []executor.Outcome
		checks []time.Time
	)
	ex := executor.New()
	runner := RunnerFunc(func(cmd executor.Command) executor.Outcome {
		out := ex.Run(cmd)
		mu.Lock()
		spawns = append(spawns, out)
		mu.Unlock()
		return out
	})
	obs := ObserverFunc(func(f Firing) { checks = append(checks, f.At) })

	cfg := Config{
		Command:      executor.NewCommand(sh, []string{"-c", ":"}),
		Interval:     interval.Spec{Unit: interval.Seconds, Magnitude: 1},
		Policy:       Fixed(3),
		PollInterval: DefaultPollInterval,
	}
	s, err := New(cfg, runner, WithObserver(obs))
	if err != nil {
		t.Fatal(err)
	}
	begin := time.Now()
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(spawns) != 3 || len(checks) != 3 {
		t.Fatalf("spawns = %d, checkpoints = %d, want 3", len(spawns), len(checks))
	}
	for i, out := range spawns {
		if !out.Success() {
			t.Fatalf("spawn %d: %+v", i+1, out)
		}
	}
	prev := begin
	for i, at := range checks {
		if gap := at.Sub(prev); gap < time.Second {
			t.Fatalf("spawn %d only %v after the previous checkpoint", i+1, gap)
		}
		prev = at
	}
}
