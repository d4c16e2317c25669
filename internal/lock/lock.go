// Package lock keeps a second interactive client off a session.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// FileName is the lock file created in the session directory.
const FileName = "ui.lock"

// Holder describes the process owning a lock.
type Holder struct {
	PID     int       `json:"pid"`
	Started time.Time `json:"started"`
}

// HeldError is returned when another process holds the lock.
type HeldError struct {
	Holder Holder
	Path   string
}

func (e *HeldError) Error() string {
	if e.Holder.PID == 0 {
		return fmt.Sprintf("session in use (%s)", e.Path)
	}
	return fmt.Sprintf("session in use by PID %d since %s (%s)",
		e.Holder.PID, e.Holder.Started.Format(time.RFC3339), e.Path)
}

// Lock is an acquired flock on a session's lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock in sessionDir without blocking.
func Acquire(sessionDir string) (*Lock, error) {
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	path := filepath.Join(sessionDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		var h Holder
		if data, rerr := os.ReadFile(path); rerr == nil {
			_ = json.Unmarshal(data, &h)
		}
		_ = f.Close()
		return nil, &HeldError{Holder: h, Path: path}
	}

	data, _ := json.Marshal(Holder{PID: os.Getpid(), Started: time.Now().UTC().Truncate(time.Second)})
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{file: f, path: path}, nil
}

// Release drops the lock. Safe to call on a nil or released lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}
