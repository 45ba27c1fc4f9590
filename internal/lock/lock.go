// Package lock implements the advisory exclusive lock spec.md §5 requires
// at the external-root path, so concurrent tool instances on the same
// project root don't race. No advisory-lock library (flock, lockedfile,
// gofrs/flock) appears in any go.mod across the retrieval pack, so this is
// built on the standard library: a lockfile created with O_CREATE|O_EXCL,
// holding the locking process's PID.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const lockFileName = ".deepclean.lock"

// Lock is a held advisory lock. Release removes the lockfile.
type Lock struct {
	path string
}

// Acquire creates the lockfile under externalRoot, failing if one already
// exists and names a still-running process. A lockfile left behind by a
// process that is no longer running is treated as stale and reclaimed.
func Acquire(externalRoot string) (*Lock, error) {
	if err := os.MkdirAll(externalRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create external root for lock: %w", err)
	}
	path := filepath.Join(externalRoot, lockFileName)

	if err := tryCreate(path); err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lockfile: %w", err)
		}
		if holderRunning(path) {
			return nil, fmt.Errorf("another deepclean run holds the lock at %s", path)
		}
		// Stale lock: the holding PID is gone. Reclaim it.
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove stale lockfile %s: %w", path, err)
		}
		if err := tryCreate(path); err != nil {
			return nil, fmt.Errorf("failed to create lockfile after reclaiming stale lock: %w", err)
		}
	}

	return &Lock{path: path}, nil
}

func tryCreate(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(strconv.Itoa(os.Getpid()))
	return err
}

func holderRunning(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; Signal(0) is the liveness probe.
	return proc.Signal(syscall.Signal(0)) == nil
}

// Release removes the lockfile.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return os.Remove(l.path)
}
