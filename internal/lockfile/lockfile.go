// Package lockfile keeps two servers from sharing one dump file.
//
// The lock is a file created with O_EXCL next to the guarded resource. It
// records the owner's PID, listen address and start time. A lock whose
// owner is no longer running is stale and is taken over.
package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrLocked is returned by TryAcquire when a running process holds the lock
	ErrLocked = errors.New("already locked by a running server")
	// ErrCorrupt is returned by ReadOwner when the lockfile cannot be parsed
	ErrCorrupt = errors.New("unreadable lockfile")
)

// Owner describes the process holding a lock.
type Owner struct {
	PID   int
	Addr  string
	Since time.Time
}

// Lockfile represents a file-based lock. It is safe for concurrent use, so a
// signal handler may release it while the main goroutine is still running.
type Lockfile struct {
	path string

	mu     sync.Mutex
	file   *os.File
	owner  Owner
	locked bool
}

// New creates a new lockfile instance
func New(path string) *Lockfile {
	return &Lockfile{
		path: path,
	}
}

// ForResource returns the lock guarding the file at path.
func ForResource(path string) *Lockfile {
	return New(path + ".lock")
}

// TryAcquire takes the lock for this process, recording addr as the address
// it serves. A stale or unreadable lock is replaced.
func (l *Lockfile) TryAcquire(addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return nil
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	file, err := l.create()
	if errors.Is(err, fs.ErrExist) {
		owner, readErr := ReadOwner(l.path)
		if readErr == nil && isProcessRunning(owner.PID) {
			return fmt.Errorf("%w: pid %d serving %s since %s", ErrLocked, owner.PID, owner.Addr, owner.Since.Format(time.RFC3339))
		}
		if removeErr := os.Remove(l.path); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale lockfile: %w", removeErr)
		}
		file, err = l.create()
	}
	if err != nil {
		return fmt.Errorf("failed to create lockfile: %w", err)
	}

	l.file = file
	l.locked = true
	l.owner = Owner{PID: os.Getpid(), Addr: addr, Since: time.Now().Truncate(time.Second)}

	content := fmt.Sprintf("%d\n%s\n%s\n", l.owner.PID, l.owner.Addr, l.owner.Since.Format(time.RFC3339))
	if _, err := l.file.WriteString(content); err != nil {
		_ = l.release()
		return fmt.Errorf("failed to write to lockfile: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		_ = l.release()
		return fmt.Errorf("failed to sync lockfile: %w", err)
	}
	return nil
}

func (l *Lockfile) create() (*os.File, error) {
	return os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
}

// ReadOwner parses the lockfile at path.
func ReadOwner(path string) (Owner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Owner{}, err
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		return Owner{}, fmt.Errorf("%w: %d lines", ErrCorrupt, len(lines))
	}
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || pid <= 0 {
		return Owner{}, fmt.Errorf("%w: bad pid %q", ErrCorrupt, lines[0])
	}
	since, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[2]))
	if err != nil {
		return Owner{}, fmt.Errorf("%w: bad timestamp %q", ErrCorrupt, lines[2])
	}
	return Owner{PID: pid, Addr: strings.TrimSpace(lines[1]), Since: since}, nil
}

// Release releases the lock
func (l *Lockfile) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.release()
}

func (l *Lockfile) release() error {
	if !l.locked {
		return nil
	}

	var errs []error
	if l.file != nil {
		errs = append(errs, l.file.Close())
		l.file = nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove lockfile: %w", err))
	}

	l.locked = false
	l.owner = Owner{}
	return errors.Join(errs...)
}

// Owner returns the recorded owner while the lock is held.
func (l *Lockfile) Owner() Owner {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Locked returns true if the lock is held
func (l *Lockfile) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// Path returns the lockfile path
func (l *Lockfile) Path() string {
	return l.path
}
