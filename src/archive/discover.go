package archive

import (
	"os"
	"path/filepath"
	"strings"
)

// maxCandidateSize and minCandidateSize bound a "potentially valid
// repository": empty files are skipped, as are files implausibly large for
// a local credential store.
const (
	minCandidateSize = 1
	maxCandidateSize = 100 * 1024 * 1024

	maxDiscoveryResults = 50
	defaultMaxDepth     = 3
)

var skipDirNames = map[string]struct{}{
	".git": {}, "node_modules": {}, "target": {}, "build": {}, "dist": {},
}

var likelyNameHints = []string{
	"password", "credential", "vault", "safe", "keychain", "vaultcore", "secret", "login", "key", "wallet",
}

// Candidate is one discovered archive file; LikelyMatch is set when its name
// suggests it's a credential store. Candidates are not ranked or sorted.
type Candidate struct {
	Path        string
	Size        int64
	LikelyMatch bool
}

// FindCandidates recursively scans root (up to maxDepth, or defaultMaxDepth
// if <= 0) for files whose name ends in ".7z", applying size-plausibility
// and common-directory-skip heuristics, and truncates the result to
// maxDiscoveryResults.
func FindCandidates(root string, maxDepth int) ([]Candidate, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	var out []Candidate
	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole scan
		}
		if d.IsDir() {
			name := d.Name()
			if _, skip := skipDirNames[name]; skip || strings.HasPrefix(name, ".") {
				if path != root {
					return filepath.SkipDir
				}
			}
			depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
			if depth > maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if len(out) >= maxDiscoveryResults {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".7z") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() < minCandidateSize || info.Size() > maxCandidateSize {
			return nil
		}
		out = append(out, Candidate{
			Path:        path,
			Size:        info.Size(),
			LikelyMatch: isLikelyRepositoryFilename(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) > maxDiscoveryResults {
		out = out[:maxDiscoveryResults]
	}
	return out, nil
}

// isLikelyRepositoryFilename reports whether path's base name contains one
// of the common password-manager naming hints.
func isLikelyRepositoryFilename(path string) bool {
	lower := strings.ToLower(filepath.Base(path))
	for _, hint := range likelyNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
