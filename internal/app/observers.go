package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"repeat/internal/executor"
	"repeat/internal/interval"
	"repeat/internal/scheduler"
	"repeat/internal/storage"
	logx "repeat/pkg/logx"
)

const historyWriteTimeout = 5 * time.Second

// historyObserver appends every firing to the history store. Write failures
// are logged; they never stop the loop.
type historyObserver struct {
	store storage.Store
	runID string
	log   logx.Logger
}

func (h *historyObserver) ObserveFiring(f scheduler.Firing) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if err := h.store.AppendFiring(ctx, firingRecord(h.runID, f)); err != nil {
		h.log.Warn("history append failed", logx.Uint64("seq", f.Seq), logx.Err(err))
	}
}

func firingRecord(runID string, f scheduler.Firing) storage.FiringRecord {
	out := f.Outcome
	r := storage.FiringRecord{
		RunID:      runID,
		Seq:        f.Seq,
		Program:    f.Command.Path,
		Argv:       f.Command.Argv,
		PID:        out.PID,
		Outcome:    out.Kind.String(),
		ExitCode:   out.ExitCode,
		StartedAt:  out.Started,
		FinishedAt: out.Finished,
		TookMS:     out.Finished.Sub(out.Started).Milliseconds(),
	}
	if out.Signaled() {
		r.Signal = unix.SignalName(out.Signal)
	}
	switch {
	case out.Err != nil:
		r.Error = out.Err.Error()
	case out.ExecErr != nil:
		r.Error = out.ExecErr.Error()
	}
	return r
}

// statusNotifier is the subset of systemd.Notifier the app uses.
type statusNotifier interface {
	Status(format string, args ...any) error
}

// statusObserver publishes a one-line service status after each firing.
type statusObserver struct {
	notify   statusNotifier
	interval interval.Spec
	policy   scheduler.Policy
	log      logx.Logger
}

func (s *statusObserver) ObserveFiring(f scheduler.Firing) {
	if err := s.notify.Status("%s", statusLine(f, s.interval, s.policy)); err != nil {
		s.log.Debug("sd_notify status failed", logx.Err(err))
	}
}

func statusLine(f scheduler.Firing, iv interval.Spec, p scheduler.Policy) string {
	var result string
	switch out := f.Outcome; {
	case out.Kind == executor.SpawnFailed:
		result = "could not be started"
	case out.Signaled():
		result = "killed by " + unix.SignalName(out.Signal)
	default:
		result = fmt.Sprintf("exited %d", out.ExitCode)
	}

	line := fmt.Sprintf("%s run %s", humanize.Ordinal(int(f.Seq)), result)
	if !p.Unlimited && f.Remaining == 0 && p.Count != 0 {
		return line + "; done"
	}
	next := f.At.Add(iv.Duration())
	line += "; next " + humanize.RelTime(next, f.At, "ago", "from now")
	if !p.Unlimited && p.Count != 0 {
		line += fmt.Sprintf(" (%s left)", humanize.Comma(int64(f.Remaining)))
	}
	return line
}
