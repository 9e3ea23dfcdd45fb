// Package prefork implements a prefork process supervisor: one process binds
// a listening socket, spawns a configurable number of worker processes and
// hands each of them a duplicate of the already-bound descriptor, so every
// worker accepts connections on the same address without performing its own
// bind. The kernel's shared accept queue distributes incoming connections
// across workers; no application-level load balancing exists or is needed.
//
// The supervisor and its workers are the same binary. A spawned worker is
// marked by an environment variable and enters the handoff-wait sequence
// instead of supervising:
//
//	func main() {
//	    reg := prefork.NewRegistry()
//	    reg.Register("web", func() any { return newWebService() })
//
//	    if prefork.IsWorker() {
//	        if err := prefork.RunWorker(reg); err != nil {
//	            log.Fatal(err)
//	        }
//	        return
//	    }
//
//	    sup, err := prefork.NewSupervisor(cfg, prefork.WithLoader(reg))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := sup.Start(context.Background()); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := sup.Wait(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Handoff Protocol
//
// Each worker gets a private socketpair created immediately before it is
// spawned. Two ordered messages cross it: a length-prefixed JSON copy of
// the configuration, then a single byte carrying the listening descriptor
// as SCM_RIGHTS ancillary data. The handoff is fire-and-forget: there is no
// acknowledgment, no timeout and no retry. A worker that never finishes its
// receive sequence looks, from the supervisor, exactly like one that is
// slow to start.
//
// # Failure Policy
//
// Bind failures, unresolvable services and undecodable configuration
// payloads are fatal for the process that detects them. Pidfile bookkeeping
// and signal delivery failures are logged and swallowed. A worker that
// exits unexpectedly is removed from the active set and never respawned;
// that is deliberate, not an oversight.
//
// # Signals
//
// The supervisor traps SIGINT, SIGHUP and SIGTERM. On any of them it
// forwards the same signal to every running worker, removes the pidfile if
// one was configured and shuts down. With zero workers the same handler
// acts as a plain exit hook for the in-process server.
package prefork
