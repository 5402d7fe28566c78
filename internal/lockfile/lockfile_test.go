package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLockfile_AcquireRelease(t *testing.T) {
	lock := ForResource(filepath.Join(t.TempDir(), "state", "sqmean.dump"))

	if err := lock.TryAcquire("127.0.0.1:8001"); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if !lock.Locked() {
		t.Error("Lock should be locked")
	}
	if lock.Owner().PID != os.Getpid() {
		t.Errorf("Expected PID %d, got %d", os.Getpid(), lock.Owner().PID)
	}

	owner, err := ReadOwner(lock.Path())
	if err != nil {
		t.Fatalf("ReadOwner() error = %v", err)
	}
	want := lock.Owner()
	if owner.PID != want.PID || owner.Addr != want.Addr || !owner.Since.Equal(want.Since) {
		t.Errorf("ReadOwner() = %+v, want %+v", owner, want)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
	if lock.Locked() {
		t.Error("Lock should not be locked after release")
	}
	if _, err := os.Stat(lock.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lockfile still present after release: %v", err)
	}

	// Should be able to acquire again
	if err := lock.TryAcquire("127.0.0.1:8001"); err != nil {
		t.Fatalf("Failed to acquire lock after release: %v", err)
	}
	lock.Release()
}

func TestLockfile_AlreadyLocked(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "sqmean.dump.lock")

	lock1 := New(lockPath)
	if err := lock1.TryAcquire("127.0.0.1:8001"); err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2 := New(lockPath)
	err := lock2.TryAcquire("127.0.0.1:8002")
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("Expected ErrLocked, got %v", err)
	}
	if lock2.Locked() {
		t.Error("second lock reports locked")
	}
}

func TestLockfile_StaleOwnerIsReplaced(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "sqmean.dump.lock")

	// A PID far above any real pid_max.
	content := fmt.Sprintf("%d\n127.0.0.1:8001\n%s\n", 999999999, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	lock := New(lockPath)
	if err := lock.TryAcquire("127.0.0.1:9000"); err != nil {
		t.Fatalf("Failed to take over stale lock: %v", err)
	}
	defer lock.Release()

	owner, err := ReadOwner(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	if owner.PID != os.Getpid() || owner.Addr != "127.0.0.1:9000" {
		t.Errorf("lock not rewritten: %+v", owner)
	}
}

func TestLockfile_CorruptIsReplaced(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "sqmean.dump.lock")
	if err := os.WriteFile(lockPath, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadOwner(lockPath); !errors.Is(err, ErrCorrupt) {
		t.Errorf("ReadOwner() error = %v, want ErrCorrupt", err)
	}

	lock := New(lockPath)
	if err := lock.TryAcquire("127.0.0.1:8001"); err != nil {
		t.Fatalf("Failed to replace corrupt lock: %v", err)
	}
	lock.Release()
}

func TestLockfile_ReleaseNotLocked(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "never.lock"))
	if err := lock.Release(); err != nil {
		t.Errorf("Release() on unlocked lock = %v", err)
	}
}

func TestLockfile_StaleTakeoverCanBeReleased(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "sqmean.dump.lock")
	content := fmt.Sprintf("%d\n127.0.0.1:8001\n%s\n", 999999999, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	lock := New(lockPath)
	if err := lock.TryAcquire("127.0.0.1:8001"); err != nil {
		t.Fatalf("TryAcquire() over stale lock = %v", err)
	}
	if !lock.Locked() {
		t.Fatal("lock not held after takeover")
	}
	if owner := lock.Owner(); owner.PID != os.Getpid() || owner.Addr != "127.0.0.1:8001" {
		t.Errorf("Owner() = %+v", owner)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(lockPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lockfile still present after Release: %v", err)
	}

	if err := New(lockPath).TryAcquire("127.0.0.1:8001"); err != nil {
		t.Errorf("TryAcquire() after Release = %v", err)
	}
}

func TestLockfile_ConcurrentRelease(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "sqmean.dump.lock"))
	if err := lock.TryAcquire("127.0.0.1:8001"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lock.Release()
		}()
	}
	wg.Wait()

	if lock.Locked() {
		t.Error("lock still held after Release")
	}
	if _, err := os.Stat(lock.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lockfile still present: %v", err)
	}
}
