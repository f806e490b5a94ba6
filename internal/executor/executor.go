package executor

import (
	"errors"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	logx "repeat/pkg/logx"
)

// Command is the resolved program and its full argument vector.
// Argv[0] is always Path.
type Command struct {
	Path string
	Argv []string
}

// NewCommand builds a Command whose argv[0] is path, followed by args.
func NewCommand(path string, args []string) Command {
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, path)
	argv = append(argv, args...)
	return Command{Path: path, Argv: argv}
}

type Kind int

const (
	// Completed means a child existed and has terminated, by exit or by signal.
	Completed Kind = iota
	// SpawnFailed means no child process could be created.
	SpawnFailed
)

func (k Kind) String() string {
	switch k {
	case Completed:
		return "completed"
	case SpawnFailed:
		return "spawn_failed"
	default:
		return "unknown"
	}
}

// Outcome describes one execution attempt.
type Outcome struct {
	Kind Kind
	PID  int

	// ExitCode is the child's exit status, or -1 when it was killed by a signal.
	ExitCode int
	Signal   syscall.Signal

	// ExecErr is set when the program image could not be loaded in the child.
	// ExitCode then carries the errno.
	ExecErr error
	// Err is the process creation error for SpawnFailed.
	Err error

	Started  time.Time
	Finished time.Time

	// Suspensions counts stop transitions seen while waiting.
	Suspensions int
}

// Signaled reports whether the child died from a signal.
func (o Outcome) Signaled() bool { return o.Kind == Completed && o.Signal != 0 }

// Success reports a clean zero exit.
func (o Outcome) Success() bool {
	return o.Kind == Completed && o.Signal == 0 && o.ExecErr == nil && o.ExitCode == 0
}

type (
	startFunc func(name string, argv []string, attr *os.ProcAttr) (*os.Process, error)
	waitFunc  func(pid int, ws *unix.WaitStatus, options int, rusage *unix.Rusage) (int, error)
)

const (
	defaultRetryMin = 10 * time.Millisecond
	defaultRetryMax = time.Second
)

// Executor spawns one child at a time and blocks until it has terminated.
// The child inherits the environment, working directory and stdio.
type Executor struct {
	log logx.Logger

	start startFunc
	wait4 waitFunc
	sleep func(time.Duration)
	now   func() time.Time

	retryMin time.Duration
	retryMax time.Duration
}

type Option func(*Executor)

func WithLogger(log logx.Logger) Option { return func(e *Executor) { e.log = log } }

// WithWaitRetry sets the backoff window used when the wait call itself fails.
func WithWaitRetry(min, max time.Duration) Option {
	return func(e *Executor) {
		if min > 0 {
			e.retryMin = min
		}
		if max >= e.retryMin {
			e.retryMax = max
		}
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		log:      logx.Nop(),
		start:    os.StartProcess,
		wait4:    unix.Wait4,
		sleep:    time.Sleep,
		now:      time.Now,
		retryMin: defaultRetryMin,
		retryMax: defaultRetryMax,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes cmd once. It returns only after the child exited or was killed;
// stop and continue transitions do not end the wait.
func (e *Executor) Run(cmd Command) Outcome {
	out := Outcome{Started: e.now()}
	log := e.log.With(logx.String("program", cmd.Path))

	proc, err := e.start(cmd.Path, cmd.Argv, &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	if err != nil {
		out.Finished = e.now()
		if errno, ok := execErrno(err); ok {
			// The child was created but could not load the program.
			out.Kind = Completed
			out.ExitCode = int(errno)
			out.ExecErr = err
			log.Error("exec failed", logx.Err(err), logx.Int("exit_code", out.ExitCode))
			return out
		}
		out.Kind = SpawnFailed
		out.Err = err
		log.Error("failed to execute command", logx.Err(err))
		return out
	}
	defer proc.Release()

	out.PID = proc.Pid
	log = log.With(logx.Int("pid", proc.Pid))
	log.Debug("child started")

	e.waitExit(proc.Pid, &out, log)
	out.Finished = e.now()
	return out
}

func (e *Executor) waitExit(pid int, out *Outcome, log logx.Logger) {
	backoff := e.retryMin
	for {
		var ws unix.WaitStatus
		wpid, err := e.wait4(pid, &ws, unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			log.Error("waitpid failed", logx.Err(err), logx.Duration("retry_in", backoff))
			e.sleep(backoff)
			backoff = min(backoff*2, e.retryMax)
			continue
		}
		backoff = e.retryMin
		if wpid != pid {
			continue
		}

		switch {
		case ws.Exited():
			out.Kind = Completed
			out.ExitCode = ws.ExitStatus()
			log.Debug("child exited", logx.Int("exit_code", out.ExitCode))
			return
		case ws.Signaled():
			out.Kind = Completed
			out.ExitCode = -1
			out.Signal = ws.Signal()
			log.Debug("child killed by signal", logx.String("signal", out.Signal.String()))
			return
		case ws.Stopped():
			out.Suspensions++
			log.Debug("child stopped", logx.String("signal", ws.StopSignal().String()))
		case ws.Continued():
			log.Debug("child continued")
		}
	}
}

// execErrno separates errors raised while loading the program image from
// errors raised while creating the process.
func execErrno(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	switch errno {
	case syscall.EAGAIN, syscall.ENOMEM, syscall.EMFILE, syscall.ENFILE, syscall.ENOSYS:
		return 0, false
	}
	return errno, true
}
