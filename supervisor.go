//go:build linux || darwin

package prefork

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/One-com/gone/log"
	"golang.org/x/sys/unix"
	"vawter.tech/stopper"
)

// Worker is the supervisor's handle on one spawned worker process. It is
// owned exclusively by the supervisor; after the handoff the only remaining
// coordination is signal delivery and exit observation.
type Worker struct {
	pid   int
	state WorkerState
}

// PID returns the worker's process id
func (w *Worker) PID() int {
	return w.pid
}

// Supervisor owns the prefork lifecycle: it binds the listening socket
// exactly once, spawns the configured number of worker processes, hands each
// a duplicate of the bound descriptor over a private channel, tracks worker
// exits and fans out termination signals. Workers that exit are not
// respawned; the supervisor only removes them from its active set.
type Supervisor struct {
	// Config is the fully-resolved configuration to run with
	Config Config

	// Logger receives supervisor bookkeeping reports
	Logger *log.Logger

	// Executable is the binary spawned as worker processes. Defaults to
	// the current executable; supervisor and workers are the same binary
	// distinguished by the worker marker.
	Executable string

	// Label is an optional free-text label attached to workers for
	// process listings
	Label string

	// RecordSupervisorPid, when true in multi-worker mode, truncate-writes
	// the supervisor's own pid to the pidfile before worker appends
	RecordSupervisorPid bool

	// StopGrace is how long shutdown waits for bookkeeping goroutines
	StopGrace time.Duration

	loader         ServiceLoader
	reloadPath     string
	reloadDebounce time.Duration
	reloadHook     func()

	mu           sync.Mutex
	listener     *net.TCPListener
	workers      []*Worker
	pidfile      *PidFile
	shuttingDown bool
	serveErr     error

	sctx *stopper.Context
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithLogger sets the logger for supervisor bookkeeping
func WithLogger(l *log.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.Logger = l
	}
}

// WithExecutable overrides the binary spawned for workers
func WithExecutable(path string) SupervisorOption {
	return func(s *Supervisor) {
		s.Executable = path
	}
}

// WithLabel attaches a free-text label to spawned workers
func WithLabel(label string) SupervisorOption {
	return func(s *Supervisor) {
		s.Label = label
	}
}

// WithSupervisorPid records the supervisor's own pid as the first pidfile
// line in multi-worker mode
func WithSupervisorPid() SupervisorOption {
	return func(s *Supervisor) {
		s.RecordSupervisorPid = true
	}
}

// WithLoader sets the service loader. Required in single-process mode,
// where the supervisor itself resolves and serves the service.
func WithLoader(loader ServiceLoader) SupervisorOption {
	return func(s *Supervisor) {
		s.loader = loader
	}
}

// WithReloadWatch watches path and fans out SIGHUP to workers when it
// changes. Workers are still never respawned; the service is expected to
// handle the signal itself.
func WithReloadWatch(path string) SupervisorOption {
	return func(s *Supervisor) {
		s.reloadPath = path
	}
}

// WithReloadDebounce sets the debounce for reload watch events
func WithReloadDebounce(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.reloadDebounce = d
	}
}

// WithStopGrace sets how long shutdown waits for bookkeeping goroutines
func WithStopGrace(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.StopGrace = d
	}
}

// NewSupervisor creates a Supervisor for cfg and applies any options
func NewSupervisor(cfg Config, opts ...SupervisorOption) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	executable, err := os.Executable()
	if err != nil {
		executable = os.Args[0]
	}

	s := &Supervisor{
		Config:         cfg,
		Logger:         log.Default(),
		Executable:     executable,
		StopGrace:      DefaultStopGrace,
		reloadDebounce: DefaultReloadDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reloadHook = s.reload

	if cfg.Workers == 0 && s.loader == nil {
		return nil, errors.New("prefork: single-process mode requires a service loader")
	}

	return s, nil
}

// Start binds the listening socket and brings up the configured number of
// workers. With Workers == 0 no forking occurs: the current process becomes
// the sole worker and serves in-process. Start returns once startup is
// complete; Wait blocks until shutdown.
//
// Bind and spawn failures are fatal and returned; the caller should exit
// non-zero. A worker that dies after a successful spawn is only removed
// from the active set.
func (s *Supervisor) Start(ctx context.Context) error {
	s.sctx = stopper.WithContext(ctx)

	if s.Config.PidFilePath != "" {
		s.pidfile = NewPidFile(s.Config.PidFilePath, s.Logger)
	}

	// The single bind+listen call, regardless of worker count
	ln, err := ListenSocket(s.Config.Host, s.Config.Port)
	if err != nil {
		return err
	}
	s.listener = ln

	if s.Config.Workers == 0 {
		return s.startSingle()
	}

	if s.RecordSupervisorPid && s.pidfile != nil {
		if err := s.pidfile.WriteTruncate([]int{os.Getpid()}); err != nil {
			s.Logger.WARN("pidfile write failed", "err", err)
		}
	}

	for i := 0; i < s.Config.Workers; i++ {
		if err := s.spawnWorker(); err != nil {
			return err
		}
	}

	// Spawning needed whatever privilege bound the port; only now does
	// the supervisor reduce its own identity
	if err := DropPrivileges(s.Config.User, s.Config.Group); err != nil {
		return err
	}

	s.routeSignals()

	if s.reloadPath != "" {
		if err := s.watchReload(); err != nil {
			s.Logger.WARN("reload watch unavailable", "err", err)
		}
	}

	s.Logger.NOTICE("supervisor started", "addr", ln.Addr().String(), "workers", s.Config.Workers)
	return nil
}

// startSingle is the Workers == 0 path: no fork, the current process serves
// directly. The pidfile gets exactly one line, this process's pid, and the
// signal handler acts as an exit hook that removes it again.
func (s *Supervisor) startSingle() error {
	if s.pidfile != nil {
		if err := s.pidfile.WriteTruncate([]int{os.Getpid()}); err != nil {
			s.Logger.WARN("pidfile write failed", "err", err)
		}
	}

	s.routeSignals()

	ln := s.listener
	s.sctx.Go(func(sctx *stopper.Context) error {
		err := serveService(&s.Config, ln, s.loader, s.Logger, false)

		s.mu.Lock()
		interrupted := s.shuttingDown
		if err != nil && !interrupted {
			s.serveErr = err
		}
		s.mu.Unlock()

		// Normal exit path: same pidfile removal the signal path does
		if !interrupted {
			s.shutdown(nil)
		}
		return nil
	})
	return nil
}

// spawnWorker opens a fresh handoff channel, starts one worker process and
// performs the two-message handoff. The handoff is fire-and-forget: nothing
// waits for the worker to consume either message, and a stalled worker is
// indistinguishable from a slow one.
func (s *Supervisor) spawnWorker() error {
	ch, childEnd, err := newChannelPair()
	if err != nil {
		return err
	}

	cmd := exec.Command(s.Executable)
	cmd.Env = append(os.Environ(), EnvWorker+"=1")
	if s.Label != "" {
		cmd.Env = append(cmd.Env, EnvWorkerLabel+"="+s.Label)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{childEnd}

	if err := cmd.Start(); err != nil {
		ch.Close()
		childEnd.Close()
		return &OpError{Op: OpSpawn, Path: s.Executable, Err: err}
	}
	childEnd.Close()

	w := &Worker{pid: cmd.Process.Pid, state: StateSpawning}
	s.mu.Lock()
	s.workers = append(s.workers, w)
	s.mu.Unlock()

	// Ordered handoff: configuration first, then the descriptor
	if err := ch.SendConfig(s.Config); err != nil {
		s.Logger.WARN("config handoff failed", "pid", w.pid, "err", err)
	} else if err := ch.SendListener(s.listener); err != nil {
		s.Logger.WARN("descriptor handoff failed", "pid", w.pid, "err", err)
	}
	ch.Close()

	s.markRunning(w)

	waitCh := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waitCh)
	}()

	s.sctx.Go(func(sctx *stopper.Context) error {
		select {
		case <-waitCh:
			s.removeWorker(w)
		case <-sctx.Stopping():
			// shutdown owns reaping from here; the plain goroutine
			// above still collects the exit status
		}
		return nil
	})

	s.Logger.INFO("worker spawned", "pid", w.pid)
	return nil
}

// markRunning promotes a freshly handed-off worker to Running. Exited is
// terminal: a worker that died instantly may be reaped before the handoff
// writes complete, and that observation must not be overwritten.
func (s *Supervisor) markRunning(w *Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.state == StateSpawning {
		w.state = StateRunning
	}
}

// removeWorker marks a worker exited and drops it from the active set.
// Deliberately no respawn: an unexpected worker exit is bookkeeping, not an
// event the supervisor reacts to.
func (s *Supervisor) removeWorker(w *Worker) {
	s.mu.Lock()
	w.state = StateExited
	for i, other := range s.workers {
		if other == w {
			s.workers = append(s.workers[:i], s.workers[i+1:]...)
			break
		}
	}
	quiet := s.shuttingDown
	s.mu.Unlock()

	if !quiet {
		s.Logger.NOTICE("worker exited", "pid", w.pid)
	}
}

// ActiveWorkers returns the pids of workers not yet observed to exit, in
// spawn order.
func (s *Supervisor) ActiveWorkers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pids := make([]int, 0, len(s.workers))
	for _, w := range s.workers {
		if w.state != StateExited {
			pids = append(pids, w.pid)
		}
	}
	return pids
}

// Addr returns the bound listening address. Useful when the configured port
// was 0.
func (s *Supervisor) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown forwards sig to every running worker, removes the pidfile and
// stops the supervisor. The signal router calls this on a routed signal;
// applications may call it directly, with a nil sig to skip the fan-out.
func (s *Supervisor) Shutdown(sig os.Signal) {
	s.shutdown(sig)
}

func (s *Supervisor) shutdown(sig os.Signal) {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	ln := s.listener
	s.mu.Unlock()

	// Fan out first, and run the loop to completion
	if usig, ok := sig.(unix.Signal); ok {
		n := s.signalWorkers(usig)
		if n > 0 {
			s.Logger.NOTICE("forwarded signal to workers", "signal", usig.String(), "count", n)
		}
	}

	// Single-process mode serves on this listener in-process; closing it
	// unblocks Serve. In multi-worker mode workers hold their own
	// duplicates, so this only drops the supervisor's copy.
	if ln != nil {
		ln.Close()
	}

	if s.pidfile != nil {
		s.pidfile.Remove()
	}

	// Shutdown before Start: nothing is running yet, there is no
	// lifecycle to stop
	if s.sctx != nil {
		s.sctx.Stop(s.StopGrace)
	}
}

// Wait blocks until the supervisor has shut down. In single-process mode it
// returns any fatal serve error; callers exit non-zero on a non-nil return.
func (s *Supervisor) Wait() error {
	if err := s.sctx.Wait(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}
