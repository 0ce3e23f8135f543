// Package lockfile guards a sweep against concurrent invocations with an
// O_EXCL lock file. A lock older than its TTL is considered abandoned by a
// crashed process and is taken over.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrLocked is returned when a live lock is held by another process
var ErrLocked = errors.New("another sweep is running")

// Info is the content of a lock file
type Info struct {
	PID  int   `json:"pid"`
	Time int64 `json:"time"`
}

// Lock is a held lock file
type Lock struct {
	path string

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// Acquire creates path exclusively. A lock whose mtime is older than ttl is
// reclaimed and the acquisition retried.
func Acquire(path string, ttl time.Duration) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create lock directory: %w", err)
		}
	}

	for attempt := 0; attempt < 3; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			werr := json.NewEncoder(f).Encode(Info{PID: os.Getpid(), Time: time.Now().Unix()})
			cerr := f.Close()
			if werr = errors.Join(werr, cerr); werr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("failed to write lock file: %w", werr)
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		fi, err := os.Stat(path)
		if err != nil {
			// released between our open and stat
			continue
		}
		if ttl > 0 && time.Since(fi.ModTime()) >= ttl {
			ok, err := reclaim(path, fi, ttl)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}
		}
		return nil, fmt.Errorf("%w (lock %s, %s)", ErrLocked, path, describe(path))
	}

	return nil, fmt.Errorf("%w (lock %s keeps reappearing)", ErrLocked, path)
}

// reclaim moves a stale lock aside under a private name before deleting it.
// If what was moved is not the file judged stale, or its heartbeat resumed in
// the meantime, it is linked back and reclaim reports false.
func reclaim(path string, seen os.FileInfo, ttl time.Duration) (bool, error) {
	aside := fmt.Sprintf("%s.stale.%d.%d", path, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(path, aside); err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to move stale lock aside: %w", err)
	}

	fi, err := os.Stat(aside)
	if err == nil && os.SameFile(fi, seen) && time.Since(fi.ModTime()) >= ttl {
		_ = os.Remove(aside)
		return true, nil
	}

	// Link fails rather than overwrite a lock created since the rename
	_ = os.Link(aside, path)
	_ = os.Remove(aside)
	return false, nil
}

func describe(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "holder unknown"
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil || info.PID == 0 {
		return "holder unknown"
	}
	return fmt.Sprintf("pid %d since %s", info.PID, time.Unix(info.Time, 0).Format(time.RFC3339))
}

// Path returns the lock file location
func (l *Lock) Path() string {
	return l.path
}

// Heartbeat refreshes the lock's mtime every interval until Release, so a
// long run is not mistaken for an abandoned one
func (l *Lock) Heartbeat(interval time.Duration) {
	if interval <= 0 || l.stop != nil {
		return
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-l.stop:
				return
			case now := <-t.C:
				_ = os.Chtimes(l.path, now, now)
			}
		}
	}()
}

// Release stops the heartbeat and removes the lock file. Safe to call twice.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		if l.stop != nil {
			close(l.stop)
			<-l.done
		}
		if rerr := os.Remove(l.path); rerr != nil && !os.IsNotExist(rerr) {
			err = rerr
		}
	})
	return err
}
