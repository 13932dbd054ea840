package cook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockTimeout is returned by fileLock.lock when the timeout
// elapses before the flock is acquired.
var ErrLockTimeout = errors.New("cook: lock timeout")

// fileLock is a minimal flock(2)-based cross-process lock, grounded on
// internal/fs.Locker's blocking-acquire-with-polling shape but trimmed to
// exactly what the cook database needs: one lock file path, shared or
// exclusive, with a context deadline. internal/fs's own Locker is not
// imported directly (see DESIGN.md: that package declares Locker twice, so
// it does not build as shipped).
type fileLock struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path}
}

// lock acquires the flock, polling every 20ms until ctx is done. excl
// selects LOCK_EX over LOCK_SH. Once acquired, the lock file's contents are
// replaced with ownerTag, so `cat .cook/lock` on a wedged exclusive holder
// identifies which process/session to investigate — the same diagnostic
// role internal/store gives the per-ticket session UUID it stamps into its
// own WAL records.
func (l *fileLock) lock(ctx context.Context, excl bool, ownerTag string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("cook: open lock file: %w", err)
	}

	how := unix.LOCK_SH
	if excl {
		how = unix.LOCK_EX
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		err := flockRetryEINTR(int(f.Fd()), how|unix.LOCK_NB)
		if err == nil {
			l.f = f

			if ownerTag != "" {
				_ = f.Truncate(0)
				_, _ = f.WriteAt([]byte(ownerTag), 0)
			}

			return nil
		}

		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
			_ = f.Close()
			return fmt.Errorf("cook: flock: %w", err)
		}

		select {
		case <-ctx.Done():
			_ = f.Close()
			return fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// unlock releases the flock and closes the underlying descriptor. Safe to
// call on an already-unlocked fileLock.
func (l *fileLock) unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}

	unlockErr := flockRetryEINTR(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil

	if unlockErr != nil {
		return fmt.Errorf("cook: unlock: %w", unlockErr)
	}

	return closeErr
}

func flockRetryEINTR(fd int, how int) error {
	for {
		err := unix.Flock(fd, how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
