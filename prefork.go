package prefork

import (
	"io/fs"
	"time"
)

// Environment variables forming the worker invocation contract. A process
// started with EnvWorker set enters the handoff-wait sequence instead of
// acting as a supervisor.
const (
	// EnvWorker marks a spawned process as a prefork worker
	EnvWorker = "PREFORK_WORKER"

	// EnvWorkerLabel carries an optional free-text label for process listings
	EnvWorkerLabel = "PREFORK_WORKER_LABEL"
)

const (
	// workerChannelFd is the file descriptor number at which a spawned
	// worker inherits its handoff channel (the first ExtraFiles slot
	// after stdin/stdout/stderr).
	workerChannelFd = 3

	// configFrameLimit bounds the size of a configuration frame a worker
	// will accept from its handoff channel
	configFrameLimit = 1 << 20
)

// File modes
const (
	// PidFileMode is the mode used when creating pidfiles
	PidFileMode fs.FileMode = 0o644
)

// Defaults that can be overridden via options
const (
	// DefaultReloadDebounce is the default debounce for reload watch events
	// to coalesce rapid changes to the watched service path
	DefaultReloadDebounce = 100 * time.Millisecond

	// DefaultStopGrace is how long Shutdown waits for supervisor
	// bookkeeping goroutines to drain
	DefaultStopGrace = 500 * time.Millisecond
)

// WorkerState tracks the lifecycle of a spawned worker process as observed
// by the supervisor.
type WorkerState int

const (
	// StateSpawning means the process has been started but the handoff
	// messages have not all been written yet
	StateSpawning WorkerState = iota
	// StateRunning means the handoff messages have been sent; the worker
	// is assumed to be serving (the handoff carries no acknowledgment)
	StateRunning
	// StateExited means the supervisor observed the process terminate
	StateExited
)

// String returns the state name
func (s WorkerState) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Operation identifies which supervisor or worker operation an error
// originated from.
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpBind is the single bind+listen performed by the supervisor
	OpBind
	// OpSpawn is the creation of a worker process and its handoff channel
	OpSpawn
	// OpSend is a supervisor-side handoff channel write
	OpSend
	// OpReceive is a worker-side handoff channel read
	OpReceive
	// OpResolve is the resolution of the configured service
	OpResolve
	// OpPidFile is a pidfile write, append, read or remove
	OpPidFile
	// OpSignal is signal delivery to a worker process
	OpSignal
	// OpPrivDrop is the uid/gid privilege drop
	OpPrivDrop
	// OpServe is the service serving on the shared descriptor
	OpServe
)

// Operation string constants
const (
	opUnknownStr  = "unknown"
	opBindStr     = "bind"
	opSpawnStr    = "spawn"
	opSendStr     = "send"
	opReceiveStr  = "receive"
	opResolveStr  = "resolve"
	opPidFileStr  = "pidfile"
	opSignalStr   = "signal"
	opPrivDropStr = "privdrop"
	opServeStr    = "serve"
)

// String returns the operation name
func (o Operation) String() string {
	switch o {
	case OpBind:
		return opBindStr
	case OpSpawn:
		return opSpawnStr
	case OpSend:
		return opSendStr
	case OpReceive:
		return opReceiveStr
	case OpResolve:
		return opResolveStr
	case OpPidFile:
		return opPidFileStr
	case OpSignal:
		return opSignalStr
	case OpPrivDrop:
		return opPrivDropStr
	case OpServe:
		return opServeStr
	default:
		return opUnknownStr
	}
}
