package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRemove(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "run", "sqmean.pid"))

	if err := p.Write(); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	pid, err := p.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Read() = %d, want %d", pid, os.Getpid())
	}

	if err := p.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := p.Remove(); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
	if _, err := p.Read(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Read() after Remove = %v, want ErrNotRunning", err)
	}
}

func TestReadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqmean.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path).Read(); err == nil {
		t.Error("Read() accepted an invalid pid")
	}
}
