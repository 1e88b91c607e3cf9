// Package lock provides advisory file locks that serialize dtab processes
// working on the same table file.
//
// A lock lives in a separate file under a ".locks" directory next to the
// table, so the table file itself can be replaced atomically while the lock
// is held. Locks use flock(2): they are released when the holder exits and
// conflict between separate opens within one process.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// DirName is the subdirectory that holds lock files.
const DirName = ".locks"

// DefaultTimeout bounds how long [Acquire] waits for a held lock.
const DefaultTimeout = 2 * time.Second

const (
	pollInterval = 10 * time.Millisecond
	dirPerms     = 0o755
	filePerms    = 0o600
)

// Lock errors.
var (
	ErrTimeout = errors.New("lock timeout")

	// ErrUnavailable is returned for a [Shared] lock when the lock file cannot
	// be created because the table's directory is read-only to the caller.
	ErrUnavailable = errors.New("lock file unavailable")

	errOpen = errors.New("failed to open lock file")
)

// Mode selects between shared and exclusive locking.
type Mode int

const (
	// Shared allows other Shared holders. Used by read-only commands.
	Shared Mode = iota
	// Exclusive excludes every other holder. Used by mutations and the shell.
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}

	return "shared"
}

func (m Mode) how() int {
	if m == Exclusive {
		return unix.LOCK_EX
	}

	return unix.LOCK_SH
}

// Lock is a held lock. Release it exactly once; extra calls are no-ops.
type Lock struct {
	path string
	file *os.File
}

// PathFor returns the lock file path guarding path.
func PathFor(path string) string {
	return filepath.Join(filepath.Dir(path), DirName, filepath.Base(path)+".lock")
}

// Acquire takes a lock guarding path, polling until it is granted, timeout
// elapses, or ctx is done. Lock files are never removed, so a holder's file
// is always the one later callers open.
//
// A [Shared] request in a directory the caller cannot write to returns an
// error wrapping [ErrUnavailable]. An existing lock file there is still
// opened read-only and locked.
func Acquire(ctx context.Context, path string, mode Mode, timeout time.Duration) (*Lock, error) {
	lockPath := PathFor(path)

	file, err := openLockFile(lockPath, mode)
	if err != nil {
		return nil, err
	}

	fd := int(file.Fd())
	deadline := time.Now().Add(timeout)

	for {
		err := unix.Flock(fd, mode.how()|unix.LOCK_NB)
		if err == nil {
			return &Lock{path: lockPath, file: file}, nil
		}

		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = file.Close()

			return nil, fmt.Errorf("flock %s: %w", lockPath, err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			_ = file.Close()

			return nil, fmt.Errorf("%w: %s (%s)", ErrTimeout, path, mode)
		}

		select {
		case <-ctx.Done():
			_ = file.Close()

			return nil, fmt.Errorf("waiting for lock on %s: %w", path, ctx.Err())
		case <-time.After(min(pollInterval, remaining)):
		}
	}
}

func openLockFile(lockPath string, mode Mode) (*os.File, error) {
	err := os.MkdirAll(filepath.Dir(lockPath), dirPerms)
	if err != nil {
		if mode == Shared && readOnly(err) {
			return openReadOnly(lockPath, err)
		}

		return nil, fmt.Errorf("creating locks dir: %w", err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerms)
	if err != nil {
		if mode == Shared && readOnly(err) {
			return openReadOnly(lockPath, err)
		}

		return nil, fmt.Errorf("%w: %w", errOpen, err)
	}

	return file, nil
}

// openReadOnly opens an existing lock file for a shared lock. flock works on
// read-only descriptors.
func openReadOnly(lockPath string, cause error) (*os.File, error) {
	file, err := os.Open(lockPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, cause)
	}

	return file, nil
}

func readOnly(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, unix.EROFS)
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	return errors.Join(unlockErr, closeErr)
}

// With runs fn while holding a lock guarding path. The lock is released when
// fn returns, and a release failure is joined into the result.
func With(ctx context.Context, path string, mode Mode, timeout time.Duration, fn func() error) (err error) {
	l, err := Acquire(ctx, path, mode, timeout)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}

	defer func() {
		err = errors.Join(err, l.Release())
	}()

	return fn()
}
