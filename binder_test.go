package prefork

import (
	"errors"
	"net"
	"testing"
)

func TestListenNetwork(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"", "tcp"},
		{"127.0.0.1", "tcp4"},
		{"0.0.0.0", "tcp4"},
		{"::1", "tcp6"},
		{"2001:db8::1", "tcp6"},
		{"::ffff:127.0.0.1", "tcp4"}, // 4-in-6 mapped stays IPv4
		{"localhost", "tcp4"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := listenNetwork(tt.host); got != tt.want {
				t.Errorf("listenNetwork(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestListenSocket(t *testing.T) {
	ln, err := ListenSocket("127.0.0.1", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// The listener must be live: a dial has to succeed
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dialing bound socket: %v", err)
	}
	conn.Close()

	accepted, err := ln.Accept()
	if err != nil {
		t.Fatalf("accepting on bound socket: %v", err)
	}
	accepted.Close()
}

func TestListenSocketAddrInUse(t *testing.T) {
	ln, err := ListenSocket("127.0.0.1", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port

	_, err = ListenSocket("127.0.0.1", port)
	if err == nil {
		t.Fatal("expected address-in-use error")
	}

	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("err = %T, want *OpError", err)
	}
	if opErr.Op != OpBind {
		t.Errorf("Op = %v, want OpBind", opErr.Op)
	}
}

func TestListenSocketIPv6(t *testing.T) {
	ln, err := ListenSocket("::1", 0)
	if err != nil {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	defer ln.Close()

	if ln.Addr().(*net.TCPAddr).IP.To4() != nil {
		t.Errorf("bound %v, want an IPv6 address", ln.Addr())
	}
}
