package prefork

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/One-com/gone/log"
	"github.com/google/renameio/v2"
)

// PidFile records process ids to a text file, one decimal pid per line.
// A supervisor running without workers truncate-writes its own pid; worker
// processes append theirs in spawn order. Appends from multiple workers are
// uncoordinated and rely on O_APPEND atomicity for single-line writes.
type PidFile struct {
	// Path is the pidfile location
	Path string

	// Logger receives best-effort failure reports. Pidfile bookkeeping
	// errors are logged, never escalated.
	Logger *log.Logger
}

// NewPidFile creates a PidFile for path. A nil logger falls back to the
// package default.
func NewPidFile(path string, logger *log.Logger) *PidFile {
	if logger == nil {
		logger = log.Default()
	}
	return &PidFile{Path: path, Logger: logger}
}

// WriteTruncate atomically replaces the pidfile with the given pids
func (p *PidFile) WriteTruncate(pids []int) error {
	var b strings.Builder
	for _, pid := range pids {
		fmt.Fprintf(&b, "%d\n", pid)
	}
	if err := renameio.WriteFile(p.Path, []byte(b.String()), PidFileMode); err != nil {
		return &OpError{Op: OpPidFile, Path: p.Path, Err: err}
	}
	return nil
}

// Append adds a single pid line in append mode. The single write keeps
// concurrent appenders from interleaving within a line.
func (p *PidFile) Append(pid int) error {
	f, err := os.OpenFile(p.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, PidFileMode)
	if err != nil {
		return &OpError{Op: OpPidFile, Path: p.Path, Err: err}
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		return &OpError{Op: OpPidFile, Path: p.Path, Err: err}
	}
	return nil
}

// Remove deletes the pidfile. It is called on every graceful termination
// path and is best-effort: failures are logged and swallowed. A forcible
// kill leaves the file behind; that is a documented limitation.
func (p *PidFile) Remove() {
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		p.Logger.WARN("pidfile remove failed", "path", p.Path, "err", err)
	}
}

// Read parses the pidfile into its recorded pids, in file order. It exists
// for external tooling and tests; the supervisor itself never reads back.
func (p *PidFile) Read() ([]int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, &OpError{Op: OpPidFile, Path: p.Path, Err: err}
	}
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, &OpError{Op: OpPidFile, Path: p.Path, Err: fmt.Errorf("bad pid line %q", line)}
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
