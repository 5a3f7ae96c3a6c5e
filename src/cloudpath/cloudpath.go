// Package cloudpath classifies a filesystem path as living under a known
// cloud-sync provider's local folder. The classification is advisory only:
// it informs retry/backoff policy in the archive provider, never
// correctness of reads or writes.
package cloudpath

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Provider identifies a cloud-sync service whose local folder layout is
// recognized.
type Provider string

const (
	ProviderNone         Provider = ""
	ProviderDropbox      Provider = "dropbox"
	ProviderOneDrive     Provider = "onedrive"
	ProviderGoogleDrive  Provider = "google_drive"
	ProviderICloud       Provider = "icloud"
	ProviderNextcloud    Provider = "nextcloud"
	ProviderPCloud       Provider = "pcloud"
	ProviderSyncthing    Provider = "syncthing"
)

// markers pair a provider with path-segment substrings (lower-cased) that
// identify its local sync root across platforms.
var markers = []struct {
	provider Provider
	segments []string
}{
	{ProviderDropbox, []string{"dropbox"}},
	{ProviderOneDrive, []string{"onedrive"}},
	{ProviderGoogleDrive, []string{"google drive", "googledrive", "google-drive"}},
	{ProviderICloud, []string{"icloud drive", "mobile documents", "com~apple~clouddocs"}},
	{ProviderNextcloud, []string{"nextcloud"}},
	{ProviderPCloud, []string{"pcloud"}},
	{ProviderSyncthing, []string{"syncthing"}},
}

// Classify inspects path (which need not exist) and reports which cloud-sync
// provider's folder it falls under, if any.
func Classify(path string) Provider {
	clean := filepath.ToSlash(filepath.Clean(path))
	lower := strings.ToLower(clean)
	for _, m := range markers {
		for _, seg := range m.segments {
			if strings.Contains(lower, seg) {
				return m.provider
			}
		}
	}
	return ProviderNone
}

// IsCloudSynced reports whether path falls under any recognized cloud-sync
// folder.
func IsCloudSynced(path string) bool {
	return Classify(path) != ProviderNone
}

// RetryHint returns a suggested number of extra retry attempts when writing
// to path (5 for a cloud-synced path, 0 otherwise), since cloud-sync clients
// can transiently hold an exclusive lock while uploading. DesktopProvider
// does not consult it; its cloud retry loop makes at most three attempts.
func RetryHint(path string) int {
	if IsCloudSynced(path) {
		return 5
	}
	return 0
}

// DefaultSyncRoots returns the well-known local sync folders for the
// current user on this platform, usable as scan roots for repository
// discovery (FindCandidates does not call it itself). Missing directories
// are silently omitted.
func DefaultSyncRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			filepath.Join(home, "Dropbox"),
			filepath.Join(home, "Library", "CloudStorage"),
			filepath.Join(home, "Library", "Mobile Documents", "com~apple~CloudDocs"),
			filepath.Join(home, "Google Drive"),
			filepath.Join(home, "OneDrive"),
			filepath.Join(home, "pCloud Drive"),
		}
	case "windows":
		candidates = []string{
			filepath.Join(home, "Dropbox"),
			filepath.Join(home, "OneDrive"),
			filepath.Join(home, "Google Drive"),
			filepath.Join(home, "pCloud Drive"),
		}
	default:
		candidates = []string{
			filepath.Join(home, "Dropbox"),
			filepath.Join(home, "OneDrive"),
			filepath.Join(home, "Nextcloud"),
			filepath.Join(home, ".pcloud"),
		}
	}
	roots := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			roots = append(roots, c)
		}
	}
	return roots
}
