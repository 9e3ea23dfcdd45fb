package prefork

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
)

// Config is the fully-resolved configuration a supervisor runs with. It is
// built once by the caller (flag parsing and config files are out of scope
// here) and treated as immutable. Each worker receives its own copy over the
// handoff channel, so workers never observe supervisor-side mutation.
type Config struct {
	// Host is the address to bind. Empty means the wildcard address.
	// An IPv6 literal selects an IPv6 socket.
	Host string `json:"host,omitempty"`

	// Port is the TCP port to bind
	Port int `json:"port"`

	// Workers is the number of worker processes to spawn. Zero means the
	// current process serves directly without forking.
	Workers int `json:"workers"`

	// TLSCert and TLSKey hold PEM material. When both are present each
	// worker constructs a TLS credential before serving.
	TLSCert []byte `json:"tls_cert,omitempty"`
	TLSKey  []byte `json:"tls_key,omitempty"`

	// User and Group identify the credentials to drop to, numeric or by
	// name. Group is applied before User.
	User  string `json:"user,omitempty"`
	Group string `json:"group,omitempty"`

	// PidFilePath, when set, receives one decimal pid per line
	PidFilePath string `json:"pid_file,omitempty"`

	// Environment is a free-text deployment environment name, passed
	// through to the service
	Environment string `json:"environment,omitempty"`

	// Service identifies the loadable service to resolve and serve
	Service string `json:"service"`
}

// Addr returns the host:port string the supervisor binds
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TLSConfigured reports whether both halves of the TLS material are present
func (c *Config) TLSConfigured() bool {
	return len(c.TLSCert) > 0 && len(c.TLSKey) > 0
}

// Validate checks the configuration for values the supervisor cannot run with
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("prefork: invalid port %d", c.Port)
	}
	if c.Workers < 0 {
		return fmt.Errorf("prefork: invalid worker count %d", c.Workers)
	}
	if c.Service == "" {
		return errors.New("prefork: no service configured")
	}
	if len(c.TLSCert) > 0 != (len(c.TLSKey) > 0) {
		return errors.New("prefork: TLS requires both certificate and key")
	}
	return nil
}

// The handoff wire format for the configuration message is a 4-byte
// big-endian length followed by that many bytes of JSON. The frame keeps the
// config message self-delimiting so the descriptor message following it on
// the same stream is never consumed by the config read.

// writeConfigFrame serializes cfg onto w
func writeConfigFrame(w io.Writer, cfg *Config) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// readConfigFrame reads a single configuration frame from r. A payload that
// fails to deserialize is an error; the worker treats it as fatal.
func readConfigFrame(r io.Reader) (Config, error) {
	var cfg Config
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return cfg, err
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > configFrameLimit {
		return cfg, ErrFrameTooLarge
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration payload: %w", err)
	}
	return cfg, nil
}
