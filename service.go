package prefork

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
)

// Listenable is the capability a resolved service must satisfy: it accepts a
// pre-bound listener and serves on it. This is the only interface the core
// requires from the application layer; what protocol the service speaks
// above the socket is its own business.
type Listenable interface {
	Serve(ln net.Listener) error
}

// TLSConfigurable is the optional capability a service may implement to
// receive the TLS credential built from the configured key material. A
// service without it still gets TLS via a wrapped listener.
type TLSConfigurable interface {
	SetTLSConfig(cfg *tls.Config)
}

// ServiceLoader resolves the configured service path to a service value.
// The loader is a collaborator supplied by the application; the supervisor
// core only asserts the returned value satisfies Listenable.
type ServiceLoader interface {
	Load(path string) (any, error)
}

// Registry is a ServiceLoader backed by an in-process map of service
// constructors. It is the default way applications expose services to
// workers: both supervisor and worker processes run the same binary, so
// registering constructors at init time makes the same services resolvable
// on both sides.
type Registry struct {
	mu       sync.RWMutex
	services map[string]func() any
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]func() any)}
}

// Register adds a service constructor under a name. Registering the same
// name twice replaces the previous constructor.
func (r *Registry) Register(name string, construct func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = construct
}

// Load resolves a registered service by name
func (r *Registry) Load(path string) (any, error) {
	r.mu.RLock()
	construct, ok := r.services[path]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, path)
	}
	return construct(), nil
}

// resolveService loads the configured service and asserts the Listenable
// capability. Failure of either is fatal for the process that detected it;
// the diagnostic names the required contract.
func resolveService(loader ServiceLoader, path string) (Listenable, error) {
	v, err := loader.Load(path)
	if err != nil {
		return nil, &OpError{Op: OpResolve, Path: path, Err: err}
	}
	svc, ok := v.(Listenable)
	if !ok {
		return nil, &OpError{Op: OpResolve, Path: path, Err: ErrNotListenable}
	}
	return svc, nil
}
