//go:build linux || darwin

package prefork

import (
	"os"
	"os/signal"
	"strconv"

	"golang.org/x/sys/unix"
	"vawter.tech/stopper"
)

// routedSignals are the signals the supervisor intercepts and fans out to
// its workers before terminating.
var routedSignals = []os.Signal{unix.SIGINT, unix.SIGHUP, unix.SIGTERM}

// routeSignals subscribes the supervisor to interrupt/hangup/terminate and
// triggers the shutdown sequence on the first one received. With zero
// workers this degenerates into the single-process exit hook: no fan-out,
// just pidfile removal. The handler runs to completion; nothing cancels a
// fan-out mid-loop.
func (s *Supervisor) routeSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, routedSignals...)

	s.sctx.Go(func(sctx *stopper.Context) error {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			s.Logger.NOTICE("signal received", "signal", sig.String())
			s.shutdown(sig)
		case <-sctx.Stopping():
		}
		return nil
	})
}

// signalWorkers delivers sig to every worker still marked running, in spawn
// order. Delivery failures are ignored beyond a debug line: the target may
// already have exited, and that is not an error here.
func (s *Supervisor) signalWorkers(sig unix.Signal) int {
	s.mu.Lock()
	var pids []int
	for _, w := range s.workers {
		if w.state == StateRunning {
			pids = append(pids, w.pid)
		}
	}
	s.mu.Unlock()

	delivered := 0
	for _, pid := range pids {
		if err := unix.Kill(pid, sig); err != nil {
			s.Logger.DEBUG("signal delivery failed", "pid", pid, "err", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Signal delivers sig to every running worker and reports delivery
// failures, aggregated per pid. The internal router swallows such failures;
// this variant exists for applications driving workers with out-of-band
// signals (log rotation, stats dumps) that need to know delivery worked.
func (s *Supervisor) Signal(sig unix.Signal) error {
	s.mu.Lock()
	var pids []int
	for _, w := range s.workers {
		if w.state == StateRunning {
			pids = append(pids, w.pid)
		}
	}
	s.mu.Unlock()

	merr := &MultiError{}
	for _, pid := range pids {
		if err := unix.Kill(pid, sig); err != nil {
			merr.Add(&OpError{Op: OpSignal, Path: strconv.Itoa(pid), Err: err})
		}
	}
	return merr.Err()
}
