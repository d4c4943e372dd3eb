package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LockedError reports that another pipeline holds the lock.
type LockedError struct {
	Path string
	PID  int
}

func (e *LockedError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("another release is in progress (pid %d, lock %s)", e.PID, e.Path)
	}
	return fmt.Sprintf("another release is in progress (lock %s)", e.Path)
}

// Lock is an exclusive lock file held for the duration of a pipeline.
type Lock struct {
	Path string
}

// Acquire creates the lock file exclusively and writes the current PID.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			pid, _ := Holder(path)
			return nil, &LockedError{Path: path, PID: pid}
		}
		return nil, fmt.Errorf("creating lock: %w", err)
	}
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing lock: %w", err)
	}
	return &Lock{Path: path}, nil
}

// Release removes the lock file. Releasing twice is harmless.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// Holder returns the PID recorded in the lock file, if the file exists.
func Holder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, true
	}
	return pid, true
}

// ForceUnlock removes a lock left behind by a crashed run.
func ForceUnlock(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock: %w", err)
	}
	return nil
}
