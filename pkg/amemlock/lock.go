// Package amemlock implements the advisory single-writer file lock that
// guards an AgenticMemory store file: a sibling "<path>.lock" file,
// tagged with the holding process's PID, that a second process can safely
// reclaim once it confirms the original holder is no longer alive.
package amemlock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
)

// Lock guards exclusive access to one store path.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire takes the advisory lock for storePath, trying once and, if the
// lock is held by a PID that process-signaling shows is no longer alive,
// reclaiming it. Fails with amemerr.Locked if a live process holds it.
func Acquire(storePath string) (*Lock, error) {
	lockPath := storePath + ".lock"
	fl := flock.New(lockPath)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, amemerr.Wrap("lock", amemerr.Io, err)
	}
	if locked {
		if err := writePID(lockPath); err != nil {
			_ = fl.Unlock()
			return nil, amemerr.Wrap("lock", amemerr.Io, err)
		}
		return &Lock{path: lockPath, fl: fl}, nil
	}

	if stalePID(lockPath) {
		if reclaimed, err := tryReclaim(lockPath, fl); err == nil && reclaimed {
			if err := writePID(lockPath); err != nil {
				_ = fl.Unlock()
				return nil, amemerr.Wrap("lock", amemerr.Io, err)
			}
			return &Lock{path: lockPath, fl: fl}, nil
		}
	}

	return nil, amemerr.New("lock", amemerr.Locked, fmt.Sprintf("store %q is locked by another process", storePath))
}

// Release unlocks and removes the lock file.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return amemerr.Wrap("unlock", amemerr.Io, err)
	}
	_ = os.Remove(l.path)
	return nil
}

func writePID(lockPath string) error {
	return os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// stalePID reports whether lockPath names a PID that is no longer a live
// process on this host.
func stalePID(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	return !processAlive(pid)
}

// processAlive probes a PID with signal 0, the standard POSIX liveness
// check: delivery fails with ESRCH if the process doesn't exist.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// tryReclaim removes a lock file known to belong to a dead process and
// re-attempts the advisory lock. A race against a concurrent reclaimer is
// resolved by the flock syscall itself: only one TryLock can succeed.
func tryReclaim(lockPath string, fl *flock.Flock) (bool, error) {
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return fl.TryLock()
}
