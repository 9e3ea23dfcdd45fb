package prefork

import (
	"net"
	"strconv"
)

// listenNetwork selects the TCP address family for a host string. An IPv6
// literal gets an IPv6 socket, anything else IPv4. The empty host binds the
// wildcard address and lets the stack pick.
func listenNetwork(host string) string {
	if host == "" {
		return "tcp"
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		return "tcp6"
	}
	return "tcp4"
}

// ListenSocket performs the single bind+listen call for a supervisor. The
// returned listener is the one descriptor every worker ends up sharing.
// Bind failures (address in use, privileged port without rights) are
// returned for the caller to treat as fatal; they are never retried.
func ListenSocket(host string, port int) (*net.TCPListener, error) {
	network := listenNetwork(host)
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	laddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return nil, &OpError{Op: OpBind, Path: addr, Err: err}
	}

	ln, err := net.ListenTCP(network, laddr)
	if err != nil {
		return nil, &OpError{Op: OpBind, Path: addr, Err: err}
	}

	return ln, nil
}
