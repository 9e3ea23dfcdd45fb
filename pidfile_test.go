package prefork

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func TestPidFileTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.pid")
	pf := NewPidFile(path, nil)

	if err := pf.WriteTruncate([]int{4242}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "4242\n" {
		t.Errorf("pidfile = %q, want %q", data, "4242\n")
	}

	// Truncate mode replaces, never accumulates
	if err := pf.WriteTruncate([]int{1}); err != nil {
		t.Fatal(err)
	}
	pids, err := pf.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(pids, []int{1}) {
		t.Errorf("pids = %v, want [1]", pids)
	}
}

func TestPidFileAppendOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.pid")
	pf := NewPidFile(path, nil)

	for _, pid := range []int{100, 200, 300} {
		if err := pf.Append(pid); err != nil {
			t.Fatal(err)
		}
	}

	pids, err := pf.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(pids, []int{100, 200, 300}) {
		t.Errorf("pids = %v, want append order preserved", pids)
	}
}

func TestPidFileConcurrentAppend(t *testing.T) {
	// Workers append uncoordinated; single-line writes must not tear
	path := filepath.Join(t.TempDir(), "app.pid")

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			pf := NewPidFile(path, nil)
			if err := pf.Append(pid); err != nil {
				t.Error(err)
			}
		}(1000 + i)
	}
	wg.Wait()

	pf := NewPidFile(path, nil)
	pids, err := pf.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(pids) != n {
		t.Fatalf("got %d pid lines, want %d", len(pids), n)
	}
	seen := make(map[int]bool)
	for _, pid := range pids {
		if pid < 1000 || pid >= 1000+n {
			t.Errorf("torn or corrupt pid line: %d", pid)
		}
		if seen[pid] {
			t.Errorf("duplicate pid line: %d", pid)
		}
		seen[pid] = true
	}
}

func TestPidFileRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.pid")
	pf := NewPidFile(path, nil)

	if err := pf.WriteTruncate([]int{os.Getpid()}); err != nil {
		t.Fatal(err)
	}
	pf.Remove()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("pidfile still present after Remove: %v", err)
	}

	// Best-effort: removing an already-missing file must not panic or log
	// anything fatal
	pf.Remove()
}

func TestPidFileReadBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.pid")
	if err := os.WriteFile(path, []byte("123\nnot-a-pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	pf := NewPidFile(path, nil)
	if _, err := pf.Read(); err == nil {
		t.Fatal("expected error for malformed pid line")
	}
}
