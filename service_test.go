package prefork

import (
	"errors"
	"net"
	"strings"
	"testing"
)

type nopService struct{}

func (nopService) Serve(ln net.Listener) error { return nil }

func TestRegistryLoad(t *testing.T) {
	reg := NewRegistry()
	reg.Register("svc", func() any { return nopService{} })

	v, err := reg.Load("svc")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(Listenable); !ok {
		t.Fatalf("loaded %T, want a Listenable", v)
	}
}

func TestRegistryLoadUnknown(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Load("missing")
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("err = %v, want ErrServiceNotFound", err)
	}
}

func TestResolveServiceCapability(t *testing.T) {
	reg := NewRegistry()
	reg.Register("good", func() any { return nopService{} })
	reg.Register("bad", func() any { return struct{}{} })

	t.Run("satisfies capability", func(t *testing.T) {
		if _, err := resolveService(reg, "good"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("lacks capability", func(t *testing.T) {
		_, err := resolveService(reg, "bad")
		if !errors.Is(err, ErrNotListenable) {
			t.Fatalf("err = %v, want ErrNotListenable", err)
		}
		// The diagnostic must name the required contract
		if !strings.Contains(err.Error(), "Listenable") {
			t.Errorf("diagnostic %q does not name the required capability", err)
		}
	})

	t.Run("not resolvable", func(t *testing.T) {
		_, err := resolveService(reg, "missing")
		if !errors.Is(err, ErrServiceNotFound) {
			t.Fatalf("err = %v, want ErrServiceNotFound", err)
		}
	})
}

func TestOpErrorFormatting(t *testing.T) {
	err := &OpError{Op: OpResolve, Path: "web", Err: ErrNotListenable}
	msg := err.Error()
	if !strings.Contains(msg, "resolve") || !strings.Contains(msg, `"web"`) {
		t.Errorf("unexpected format: %q", msg)
	}
	if !errors.Is(err, ErrNotListenable) {
		t.Error("OpError must unwrap to its cause")
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.Err() != nil {
		t.Error("empty MultiError must yield nil")
	}
	m.Add(nil)
	if m.Err() != nil {
		t.Error("nil adds must be ignored")
	}
	m.Add(errors.New("one"))
	if m.Err() == nil || m.Error() != "one" {
		t.Errorf("single error summary = %q", m.Error())
	}
	m.Add(errors.New("two"))
	if !strings.Contains(m.Error(), "2 errors") {
		t.Errorf("aggregate summary = %q", m.Error())
	}
}
