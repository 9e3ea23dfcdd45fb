//go:build linux || darwin

package prefork

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"vawter.tech/stopper"
)

func TestReloadWatchFires(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "service.bin")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o755))

	sup, err := NewSupervisor(
		Config{Host: "127.0.0.1", Workers: 1, Service: "pid-echo"},
		WithReloadWatch(target),
		WithReloadDebounce(10*time.Millisecond),
	)
	require.NoError(t, err)

	fired := make(chan struct{}, 4)
	sup.reloadHook = func() { fired <- struct{}{} }
	sup.sctx = stopper.WithContext(context.Background())
	defer func() {
		sup.sctx.Stop(100 * time.Millisecond)
		_ = sup.sctx.Wait()
	}()

	require.NoError(t, sup.watchReload())

	require.NoError(t, os.WriteFile(target, []byte("v2"), 0o755))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("reload hook never fired after service change")
	}
}

func TestReloadWatchIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "service.bin")
	sibling := filepath.Join(dir, "unrelated")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o755))

	sup, err := NewSupervisor(
		Config{Host: "127.0.0.1", Workers: 1, Service: "pid-echo"},
		WithReloadWatch(target),
		WithReloadDebounce(10*time.Millisecond),
	)
	require.NoError(t, err)

	fired := make(chan struct{}, 4)
	sup.reloadHook = func() { fired <- struct{}{} }
	sup.sctx = stopper.WithContext(context.Background())
	defer func() {
		sup.sctx.Stop(100 * time.Millisecond)
		_ = sup.sctx.Wait()
	}()

	require.NoError(t, sup.watchReload())

	require.NoError(t, os.WriteFile(sibling, []byte("noise"), 0o644))

	select {
	case <-fired:
		t.Fatal("reload hook fired for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestReloadWatchMissingDir(t *testing.T) {
	sup, err := NewSupervisor(
		Config{Host: "127.0.0.1", Workers: 1, Service: "pid-echo"},
		WithReloadWatch("/no/such/dir/service.bin"),
	)
	require.NoError(t, err)

	sup.sctx = stopper.WithContext(context.Background())
	defer func() {
		sup.sctx.Stop(100 * time.Millisecond)
		_ = sup.sctx.Wait()
	}()

	require.Error(t, sup.watchReload())
}
