// Package filelock provides cross-platform advisory exclusive file locking
// to prevent concurrent access to an archive, particularly from a cloud-sync
// client (Dropbox/OneDrive/etc.) trying to upload the file mid-write. A lock
// is acquired with a 100ms poll loop bounded by a deadline and released
// through io.Closer on every exit path.
package filelock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// pollInterval is the sleep between lock attempts while waiting out a
// timeout.
const pollInterval = 100 * time.Millisecond

// FileLock holds an exclusive advisory lock on an existing file for as long
// as it stays open. Call Close to release it; a held lock is also safe to
// leak until process exit since the OS releases flock/LockFileEx locks when
// the file descriptor closes.
type FileLock struct {
	file   *os.File
	path   string
	locked bool
}

// New opens path and blocks, retrying every 100ms, until it acquires an
// exclusive lock or timeout elapses. Returns a *vaulterr.FileError with
// FileNotFound if the path doesn't exist, FileIoError if it cannot be
// stat'd, FileLockFailed if it cannot be opened, or FileLockTimeout if the
// deadline passes; every failed lock attempt is retried until then.
func New(path string, timeout time.Duration) (*FileLock, error) {
	log.Debug().Str("path", path).Msg("acquiring file lock")

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, vaulterr.NewFileError(vaulterr.FileNotFound, path, err)
		}
		return nil, vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, vaulterr.NewFileError(vaulterr.FileLockFailed, path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := tryLock(f); err == nil {
			log.Debug().Str("path", path).Msg("acquired file lock")
			return &FileLock{file: f, path: path, locked: true}, nil
		} else if time.Now().Before(deadline) {
			time.Sleep(pollInterval)
			continue
		} else {
			f.Close()
			return nil, vaulterr.NewFileError(vaulterr.FileLockTimeout, path, err)
		}
	}
}

// Path returns the locked file's path.
func (l *FileLock) Path() string { return l.path }

// Unlock releases the lock explicitly; Close calls this too, so it rarely
// needs to be called directly.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := unlockFile(l.file); err != nil {
		return vaulterr.NewFileError(vaulterr.FileLockFailed, l.path, err)
	}
	l.locked = false
	log.Debug().Str("path", l.path).Msg("released file lock")
	return nil
}

// Close unlocks and closes the underlying file descriptor.
func (l *FileLock) Close() error {
	if err := l.Unlock(); err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("failed to unlock file on close")
	}
	return l.file.Close()
}

// LockFile creates (if needed) and locks a companion "<name>.lock" file next
// to base_path, the coordination mechanism used when the archive itself
// must stay untouched while a lock is held, or does not exist yet.
type LockFile struct {
	lockPath string
	inner    *FileLock
}

// CreateCompanion creates/locks the ".lock" sibling of basePath.
func CreateCompanion(basePath string, timeout time.Duration) (*LockFile, error) {
	lockPath := companionPath(basePath)

	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(lockPath, []byte("vaultcore"), 0o600); err != nil {
			return nil, vaulterr.NewFileErrorf(vaulterr.FileLockFailed, err, "create lock file %s", lockPath)
		}
	}

	fl, err := New(lockPath, timeout)
	if err != nil {
		return nil, err
	}
	return &LockFile{lockPath: lockPath, inner: fl}, nil
}

// Path returns the companion lock file's path.
func (l *LockFile) Path() string { return l.lockPath }

// Close releases the lock and removes the companion file.
func (l *LockFile) Close() error {
	if err := l.inner.Close(); err != nil {
		return err
	}
	if err := os.Remove(l.lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debug().Err(err).Str("path", l.lockPath).Msg("failed to remove lock file")
	}
	return nil
}

// companionPath appends ".lock" to the existing extension rather than
// replacing it, so "vault.7z" becomes "vault.7z.lock".
func companionPath(basePath string) string {
	ext := filepath.Ext(basePath)
	if ext == "" {
		return basePath + ".lock"
	}
	return strings.TrimSuffix(basePath, ext) + ext + ".lock"
}
