// Package archive implements the file-operation provider abstraction: the
// single boundary between the in-memory repository and the encrypted 7z
// archive that is its durable form. DesktopProvider shells out to the `7z`
// CLI (`exec.LookPath` to fail fast when the tool is missing,
// `exec.CommandContext` for the actual invocation) with atomic rewrite and
// file locking around every extract/create/change-password cycle.
package archive

import (
	"context"
)

// sevenZipSignature is the 6-byte magic header every valid 7z file starts
// with.
var sevenZipSignature = [6]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}

// Config holds the compression/backup/validation defaults a provider
// applies when none are overridden by the caller.
type Config struct {
	CompressionLevel       int
	SolidCompression       bool
	MultiThreadedComp      bool
	MinPasswordLength      int
	FileLockTimeoutSeconds int
}

// DefaultConfig returns the documented archive-provider defaults.
func DefaultConfig() Config {
	return Config{
		CompressionLevel:       5,
		SolidCompression:       true,
		MultiThreadedComp:      true,
		MinPasswordLength:      12,
		FileLockTimeoutSeconds: 30,
	}
}

// Provider is the single abstraction over archive storage. All
// implementations must acquire an exclusive file lock on path for the
// duration of Extract/Create/ChangePassword.
type Provider interface {
	Extract(ctx context.Context, path, passphrase string) (FileMapBytes, error)
	Create(ctx context.Context, path, passphrase string, files FileMapBytes) error
	Exists(path string) bool
	ValidateHeader(path string) bool
	ChangePassword(ctx context.Context, path, oldPassphrase, newPassphrase string) error
}

// FileMapBytes mirrors credential.FileMap's shape without importing the
// credential package, keeping archive usable by anything that deals in raw
// archive-relative paths (the provider has no business knowing about
// CredentialRecord).
type FileMapBytes map[string][]byte
