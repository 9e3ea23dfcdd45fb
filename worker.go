//go:build linux || darwin

package prefork

import (
	"crypto/tls"
	"net"
	"os"

	"github.com/One-com/gone/log"
)

// IsWorker reports whether this process was spawned as a prefork worker and
// should enter the handoff-wait sequence instead of supervising. The marker
// is an environment variable, not an argument: workers never re-parse the
// command line.
func IsWorker() bool {
	return os.Getenv(EnvWorker) != ""
}

// WorkerLabel returns the free-text label the supervisor attached at spawn
// time, if any. It exists for process identification only.
func WorkerLabel() string {
	return os.Getenv(EnvWorkerLabel)
}

// WorkerOption configures RunWorker
type WorkerOption func(*workerConfig)

type workerConfig struct {
	logger *log.Logger
}

// WithWorkerLogger sets the logger the worker runtime reports through
func WithWorkerLogger(l *log.Logger) WorkerOption {
	return func(wc *workerConfig) {
		wc.logger = l
	}
}

// RunWorker is the worker-process entry point. It blocks until the
// configuration and then the listening descriptor arrive on the inherited
// handoff channel, resolves the configured service through the loader and
// serves on the received descriptor. Any returned error is fatal for this
// worker only; the caller should exit non-zero. A worker's failure never
// propagates to the supervisor or its siblings.
func RunWorker(loader ServiceLoader, opts ...WorkerOption) error {
	wc := &workerConfig{logger: log.Default()}
	for _, opt := range opts {
		opt(wc)
	}

	ch, err := openWorkerChannel()
	if err != nil {
		return err
	}

	// Strictly ordered: the config frame is fully consumed before the
	// descriptor message is interpreted.
	cfg, err := ch.RecvConfig()
	if err != nil {
		return err
	}

	ln, err := ch.RecvListener()
	if err != nil {
		return err
	}
	ch.Close()

	return serveService(&cfg, ln, loader, wc.logger, true)
}

// serveService is the common tail of the worker runtime, shared with the
// supervisor's single-process mode: resolve the service, apply TLS, record
// the pid, drop privileges, serve on the already-bound listener. The order
// is fixed. appendPid distinguishes a spawned worker (append mode) from the
// single-process supervisor, which truncate-writes its pidfile up front.
func serveService(cfg *Config, ln net.Listener, loader ServiceLoader, logger *log.Logger, appendPid bool) error {
	svc, err := resolveService(loader, cfg.Service)
	if err != nil {
		return err
	}

	if cfg.TLSConfigured() {
		cert, err := tls.X509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return &OpError{Op: OpResolve, Path: cfg.Service, Err: err}
		}
		tlsConf := &tls.Config{Certificates: []tls.Certificate{cert}}
		if tc, ok := svc.(TLSConfigurable); ok {
			tc.SetTLSConfig(tlsConf)
		} else {
			// Service lacks the optional TLS capability; terminate
			// TLS in front of it instead
			ln = tls.NewListener(ln, tlsConf)
		}
	}

	if appendPid && cfg.PidFilePath != "" {
		// Append mode: siblings write concurrently to the same file,
		// relying on O_APPEND atomicity, not locking
		pf := NewPidFile(cfg.PidFilePath, logger)
		if err := pf.Append(os.Getpid()); err != nil {
			logger.WARN("pidfile append failed", "err", err)
		}
	}

	if err := DropPrivileges(cfg.User, cfg.Group); err != nil {
		return err
	}

	logger.NOTICE("serving", "service", cfg.Service, "addr", ln.Addr().String(), "pid", os.Getpid())

	// Not a new bind: this is the identical socket shared with siblings.
	// The kernel distributes incoming connections across accept calls.
	if err := svc.Serve(ln); err != nil {
		return &OpError{Op: OpServe, Path: cfg.Service, Err: err}
	}
	return nil
}
