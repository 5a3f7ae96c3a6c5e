package filelock

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.7z")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestNewAcquiresLockOnExistingFile(t *testing.T) {
	path := tempFile(t)
	l, err := New(path, 5*time.Second)
	if err != nil {
		t.Fatalf("expected lock to succeed, got %v", err)
	}
	defer l.Close()
}

func TestNewFailsOnNonexistentFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.7z"), time.Second)
	if err == nil {
		t.Fatalf("expected FileNotFound error")
	}
}

func TestTimeoutWhileHeld(t *testing.T) {
	path := tempFile(t)
	held, err := New(path, 10*time.Second)
	if err != nil {
		t.Fatalf("failed to acquire initial lock: %v", err)
	}
	defer held.Close()

	start := time.Now()
	_, err = New(path, time.Second)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected second lock to time out")
	}
	if elapsed < time.Second {
		t.Fatalf("expected to wait out the full timeout, elapsed %v", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestAutoUnlockOnClose(t *testing.T) {
	path := tempFile(t)
	l, err := New(path, 5*time.Second)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2, err := New(path, time.Second)
	if err != nil {
		t.Fatalf("expected to reacquire lock immediately after close, got %v", err)
	}
	defer l2.Close()
}

func TestCreateCompanionCreatesAndRemovesLockFile(t *testing.T) {
	path := tempFile(t)
	lf, err := CreateCompanion(path, 5*time.Second)
	if err != nil {
		t.Fatalf("create companion: %v", err)
	}
	if _, err := os.Stat(lf.Path()); err != nil {
		t.Fatalf("expected companion lock file to exist: %v", err)
	}
	if filepath.Ext(lf.Path()) != ".lock" {
		t.Fatalf("expected .lock suffix, got %s", lf.Path())
	}
	if err := lf.Close(); err != nil {
		t.Fatalf("close companion: %v", err)
	}
	if _, err := os.Stat(lf.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected companion lock file to be removed")
	}
}
