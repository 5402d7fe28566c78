//go:build !windows

package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestSignalSelf(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "sqmean.pid"))
	if err := p.Write(); err != nil {
		t.Fatal(err)
	}

	// Signal 0 only checks that the process exists.
	pid, err := p.Signal(syscall.Signal(0))
	if err != nil {
		t.Fatalf("Signal() error = %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Signal() pid = %d, want %d", pid, os.Getpid())
	}
}

func TestSignalWithoutPidfile(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "missing.pid"))
	if _, err := p.Signal(syscall.Signal(0)); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Signal() = %v, want ErrNotRunning", err)
	}
}
