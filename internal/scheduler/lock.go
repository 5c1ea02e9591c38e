package scheduler

import (
	"os"
	"syscall"
)

// FileLock keeps the tick loop single-driver per database. A second
// `teamd serve` against the same data dir finds the flock(2) held and
// skips its ticks instead of double-running agents.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns an unheld lock for path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock takes the lock without blocking. It reports false when
// another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return false, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return false, nil
		}
		return false, err
	}
	l.file = f
	return true, nil
}

// Unlock releases the lock and removes the lock file. Unlocking an
// unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return err
	}
	name := l.file.Name()
	l.file.Close()
	l.file = nil
	os.Remove(name)
	return nil
}
