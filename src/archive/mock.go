package archive

import (
	"context"
	"sync"

	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// MockProvider is the in-memory Provider used by tests and by hosts where
// direct 7z I/O is unavailable from the core. Extract returns a previously
// captured FileMap; Create records the last-written map.
type MockProvider struct {
	mu        sync.Mutex
	archives  map[string]mockArchive
}

type mockArchive struct {
	passphrase string
	files      FileMapBytes
}

// NewMockProvider returns an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{archives: make(map[string]mockArchive)}
}

// Seed pre-populates path with files under passphrase, as if a prior Create
// had written it, without going through Create itself.
func (m *MockProvider) Seed(path, passphrase string, files FileMapBytes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[path] = mockArchive{passphrase: passphrase, files: copyFileMap(files)}
}

func (m *MockProvider) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.archives[path]
	return ok
}

func (m *MockProvider) ValidateHeader(path string) bool {
	return m.Exists(path)
}

func (m *MockProvider) Extract(_ context.Context, path, passphrase string) (FileMapBytes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.archives[path]
	if !ok {
		return nil, vaulterr.NewFileError(vaulterr.FileNotFound, path, nil)
	}
	if a.passphrase != passphrase {
		return nil, vaulterr.NewFileError(vaulterr.FileInvalidPassword, path, nil)
	}
	return copyFileMap(a.files), nil
}

// Create atomically (over)writes path's contents, matching DesktopProvider:
// the manager is responsible for refusing to recreate an existing archive;
// the provider itself just performs the rewrite, since save reuses this
// same call for every subsequent write.
func (m *MockProvider) Create(_ context.Context, path, passphrase string, files FileMapBytes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[path] = mockArchive{passphrase: passphrase, files: copyFileMap(files)}
	return nil
}

func (m *MockProvider) ChangePassword(ctx context.Context, path, oldPassphrase, newPassphrase string) error {
	files, err := m.Extract(ctx, path, oldPassphrase)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.archives[path] = mockArchive{passphrase: newPassphrase, files: files}
	m.mu.Unlock()
	return nil
}

func copyFileMap(fm FileMapBytes) FileMapBytes {
	out := make(FileMapBytes, len(fm))
	for k, v := range fm {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
