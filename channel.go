//go:build linux || darwin

package prefork

import (
	"fmt"
	"net"
	"os"
	"syscall"

	xunix "github.com/axondata/go-prefork/internal/unix"
)

// descriptorMsg is the single byte carried by the descriptor message. The
// byte itself is padding; the listener travels as ancillary data.
const descriptorMsg = 'L'

// Channel is the private, per-worker handoff channel. The supervisor creates
// one immediately before spawning a worker, keeps one end and passes the
// other to the child as an inherited descriptor. Exactly two ordered
// messages cross it: the configuration frame, then the listening descriptor
// as SCM_RIGHTS ancillary data. The protocol defines no acknowledgment and
// no timeout; sends are fire-and-forget.
type Channel struct {
	conn *net.UnixConn
}

// newChannelPair creates a connected socketpair and returns the supervisor
// end as a Channel plus the child end as an *os.File suitable for
// exec.Cmd.ExtraFiles. The caller closes the child end after spawning.
func newChannelPair() (*Channel, *os.File, error) {
	fds, err := xunix.Socketpair()
	if err != nil {
		return nil, nil, &OpError{Op: OpSpawn, Err: err}
	}

	parentFile := os.NewFile(uintptr(fds[0]), "prefork-channel")
	childFile := os.NewFile(uintptr(fds[1]), "prefork-channel-child")

	ch, err := channelFromFile(parentFile)
	if err != nil {
		childFile.Close()
		return nil, nil, &OpError{Op: OpSpawn, Err: err}
	}
	return ch, childFile, nil
}

// channelFromFile wraps an inherited socketpair end as a Channel. The file
// is closed; the connection holds its own duplicate.
func channelFromFile(f *os.File) (*Channel, error) {
	defer f.Close()
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("handoff descriptor is %T, not a unix socket", conn)
	}
	return &Channel{conn: uc}, nil
}

// openWorkerChannel opens the handoff channel a worker inherited at spawn
// time. It fails with ErrNotWorker when the worker marker is absent.
func openWorkerChannel() (*Channel, error) {
	if !IsWorker() {
		return nil, &OpError{Op: OpReceive, Err: ErrNotWorker}
	}
	f := os.NewFile(workerChannelFd, "prefork-channel")
	ch, err := channelFromFile(f)
	if err != nil {
		return nil, &OpError{Op: OpReceive, Err: err}
	}
	return ch, nil
}

// SendConfig transmits the configuration frame. It must be called before
// SendListener; the worker consumes the messages in that order.
func (c *Channel) SendConfig(cfg Config) error {
	if err := writeConfigFrame(c.conn, &cfg); err != nil {
		return &OpError{Op: OpSend, Err: err}
	}
	return nil
}

// SendListener transmits a duplicate of the shared listening descriptor as
// ancillary data. The supervisor retains its own copy; the kernel arbitrates
// accepts across all duplicates.
func (c *Channel) SendListener(ln *net.TCPListener) error {
	f, err := ln.File()
	if err != nil {
		return &OpError{Op: OpSend, Err: err}
	}
	defer f.Close()

	rights := syscall.UnixRights(int(f.Fd()))
	if _, _, err := c.conn.WriteMsgUnix([]byte{descriptorMsg}, rights, nil); err != nil {
		return &OpError{Op: OpSend, Err: err}
	}
	return nil
}

// RecvConfig blocks until the configuration frame arrives and deserializes
// it. A payload that fails to parse is fatal for the worker.
func (c *Channel) RecvConfig() (Config, error) {
	cfg, err := readConfigFrame(c.conn)
	if err != nil {
		return cfg, &OpError{Op: OpReceive, Err: err}
	}
	return cfg, nil
}

// RecvListener blocks until the descriptor message arrives and returns the
// shared listening socket as a net.Listener.
func (c *Channel) RecvListener() (net.Listener, error) {
	buf := make([]byte, 1)
	oob := make([]byte, syscall.CmsgSpace(4))

	_, oobn, _, _, err := c.conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, &OpError{Op: OpReceive, Err: err}
	}

	msgs, err := syscall.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, &OpError{Op: OpReceive, Err: err}
	}
	if len(msgs) == 0 {
		return nil, &OpError{Op: OpReceive, Err: ErrNoDescriptor}
	}

	fds, err := syscall.ParseUnixRights(&msgs[0])
	if err != nil {
		return nil, &OpError{Op: OpReceive, Err: err}
	}
	if len(fds) == 0 {
		return nil, &OpError{Op: OpReceive, Err: ErrNoDescriptor}
	}

	syscall.CloseOnExec(fds[0])
	f := os.NewFile(uintptr(fds[0]), "prefork-listener")
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, &OpError{Op: OpReceive, Err: err}
	}
	return ln, nil
}

// Close releases the supervisor's end of the channel. The worker keeps its
// end until it has consumed both messages.
func (c *Channel) Close() error {
	return c.conn.Close()
}
