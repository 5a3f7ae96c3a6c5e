package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/vaultcore/vaultcore/src/cloudpath"
	"github.com/vaultcore/vaultcore/src/filelock"
	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// DesktopProvider implements Provider by shelling out to the `7z` CLI
// binary; no maintained pure-Go library both reads and writes
// AES-256-encrypted 7z archives with header encryption.
type DesktopProvider struct {
	cfg Config
}

// NewDesktopProvider returns a provider using cfg's compression/lock
// settings.
func NewDesktopProvider(cfg Config) *DesktopProvider {
	return &DesktopProvider{cfg: cfg}
}

func lookup7z() (string, error) {
	bin, err := exec.LookPath("7z")
	if err != nil {
		return "", vaulterr.NewFileErrorf(vaulterr.FileToolUnavailable, err,
			"7z command not found; install p7zip (apt-get install p7zip-full / brew install p7zip)")
	}
	return bin, nil
}

// Exists reports whether path exists and is a regular file.
func (p *DesktopProvider) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ValidateHeader reads the first 6 bytes of path and compares them against
// the 7z magic signature, without touching the encrypted content.
func (p *DesktopProvider) ValidateHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var header [6]byte
	n, err := f.Read(header[:])
	if err != nil || n < 6 {
		return false
	}
	return bytes.Equal(header[:], sevenZipSignature[:])
}

// Extract opens path under an exclusive file lock, decrypts it with
// passphrase via `7z x`, and returns every member path and its bytes.
func (p *DesktopProvider) Extract(ctx context.Context, path, passphrase string) (FileMapBytes, error) {
	if !p.Exists(path) {
		return nil, vaulterr.NewFileError(vaulterr.FileNotFound, path, nil)
	}

	bin, err := lookup7z()
	if err != nil {
		return nil, err
	}

	lock, err := filelock.New(path, p.lockTimeout())
	if err != nil {
		return nil, err
	}
	defer lock.Close()

	tempDir, err := os.MkdirTemp("", "vaultcore-extract-")
	if err != nil {
		return nil, vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}
	defer os.RemoveAll(tempDir)

	var stderr bytes.Buffer
	newCmd := func() *exec.Cmd {
		stderr.Reset()
		cmd := exec.CommandContext(ctx, bin, "x", "-p"+passphrase, "-o"+tempDir, "-y", path)
		cmd.Stderr = &stderr
		return cmd
	}
	if err := p.runWithCloudRetry(ctx, newCmd, path); err != nil {
		return nil, classifyExtractError(path, stderr.String(), err)
	}

	files := make(FileMapBytes)
	err = filepath.WalkDir(tempDir, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(tempDir, walkPath)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(walkPath)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}
	return files, nil
}

// Create writes a brand-new encrypted archive atomically: stage the file
// tree in a scratch directory, invoke `7z a`, then rename-over-destination
// with fsync at each step. Takes the exclusive file lock for the duration:
// path's own lock if the destination already exists (an overwrite/save), or
// the `<path>.lock` companion when it doesn't yet exist, since filelock.New
// requires the target file to already be present.
func (p *DesktopProvider) Create(ctx context.Context, path, passphrase string, files FileMapBytes) error {
	bin, err := lookup7z()
	if err != nil {
		return err
	}

	lock, err := p.acquireCreateLock(path)
	if err != nil {
		return err
	}
	defer lock.Close()

	dir := filepath.Dir(path)
	scratchDir, err := os.MkdirTemp(dir, ".vaultcore-stage-")
	if err != nil {
		return vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}
	defer os.RemoveAll(scratchDir)

	for rel, data := range files {
		full := filepath.Join(scratchDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
			return vaulterr.NewFileError(vaulterr.FileIoError, path, err)
		}
		if err := os.WriteFile(full, data, 0o600); err != nil {
			return vaulterr.NewFileError(vaulterr.FileIoError, path, err)
		}
	}

	tempArchive, err := os.CreateTemp(dir, ".vaultcore-archive-*.7z")
	if err != nil {
		return vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}
	tempArchivePath := tempArchive.Name()
	tempArchive.Close()
	os.Remove(tempArchivePath) // 7z refuses to write over an existing (empty) file
	defer os.Remove(tempArchivePath)

	args := []string{
		"a",
		"-p" + passphrase,
		"-mhe=on",
		fmt.Sprintf("-mx%d", p.cfg.CompressionLevel),
		onOffFlag("-ms", p.cfg.SolidCompression),
		onOffFlag("-mmt", p.cfg.MultiThreadedComp),
		tempArchivePath,
		".",
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = scratchDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return vaulterr.NewFileErrorf(vaulterr.FileCreationFailed, err, "7z a failed: %s", stderr.String())
	}

	if err := fsyncPath(tempArchivePath); err != nil {
		return vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}
	if err := os.Rename(tempArchivePath, path); err != nil {
		return vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}
	if err := fsyncDir(dir); err != nil {
		return vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}
	return nil
}

// ChangePassword re-encrypts an archive under a new passphrase. The
// extract/create pair happens against a temp path so there is never a
// window where the archive on disk is missing or decrypted.
func (p *DesktopProvider) ChangePassword(ctx context.Context, path, oldPassphrase, newPassphrase string) error {
	files, err := p.Extract(ctx, path, oldPassphrase)
	if err != nil {
		return err
	}
	return p.Create(ctx, path, newPassphrase, files)
}

func (p *DesktopProvider) lockTimeout() time.Duration {
	secs := p.cfg.FileLockTimeoutSeconds
	if secs <= 0 {
		secs = DefaultConfig().FileLockTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// acquireCreateLock takes the exclusive lock Create must hold for its whole
// write. When path already exists it locks path directly, matching Extract;
// when path doesn't exist yet (first-ever save of a freshly created
// archive) it locks the `<path>.lock` companion file instead, since
// filelock.New requires an existing file to open.
func (p *DesktopProvider) acquireCreateLock(path string) (io.Closer, error) {
	if p.Exists(path) {
		return filelock.New(path, p.lockTimeout())
	}
	return filelock.CreateCompanion(path, p.lockTimeout())
}

func onOffFlag(flag string, on bool) string {
	if on {
		return flag + "=on"
	}
	return flag + "=off"
}

func fsyncPath(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func classifyExtractError(path, stderrOutput string, cause error) error {
	switch {
	case containsAny(stderrOutput, "Wrong password", "Can not open encrypted archive"):
		return vaulterr.NewFileErrorf(vaulterr.FileInvalidPassword, cause, "%s", stderrOutput)
	case containsAny(stderrOutput, "Data Error", "Headers Error", "Unexpected end of archive", "Is not archive"):
		return vaulterr.NewFileErrorf(vaulterr.FileCorruptedArchive, cause, "%s", stderrOutput)
	default:
		return vaulterr.NewFileErrorf(vaulterr.FileExtractionFailed, cause, "%s", stderrOutput)
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains([]byte(haystack), []byte(n)) {
			return true
		}
	}
	return false
}

// runWithCloudRetry retries cmd up to 3 times with jittered exponential
// backoff when path is classified as cloud-synced, ignoring transient
// permission errors for the first two attempts. Pacing is via
// golang.org/x/time/rate rather than a hand-rolled sleep loop, with the
// limiter's refill interval reset to each attempt's backoff delay.
func (p *DesktopProvider) runWithCloudRetry(ctx context.Context, newCmd func() *exec.Cmd, path string) error {
	if !cloudpath.IsCloudSynced(path) {
		return newCmd().Run()
	}

	limiter := newCloudRetryLimiter()
	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		limiter.SetLimit(rate.Every(cloudRetryDelay(attempt)))
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = newCmd().Run()
		if lastErr == nil {
			return nil
		}
		if attempt <= 2 && os.IsPermission(lastErr) {
			log.Debug().Str("path", path).Int("attempt", attempt).Msg("ignoring transient permission error from cloud sync client")
			continue
		}
		if attempt == maxAttempts {
			break
		}
	}
	return lastErr
}
