// Package manager implements the repository manager: the state machine that
// couples the in-memory repository to the file provider across the
// open/save/close lifecycle, with dirty tracking, backup rotation, and
// optional deep validation/auto-repair at open. Every public method
// serializes on a single mutex. Lifecycle transitions are logged through
// github.com/rs/zerolog/log; a CredentialRecord's raw fields never reach a
// log call, only credential.SanitizeForLog's redacted projection.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vaultcore/vaultcore/src/archive"
	"github.com/vaultcore/vaultcore/src/backup"
	"github.com/vaultcore/vaultcore/src/config"
	"github.com/vaultcore/vaultcore/src/credential"
	"github.com/vaultcore/vaultcore/src/repository"
	"github.com/vaultcore/vaultcore/src/search"
	"github.com/vaultcore/vaultcore/src/validate"
	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// State is the manager's lifecycle state.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Manager orchestrates one archive's open/mutate/save/close cycle. The zero
// value is not usable; construct with New.
type Manager struct {
	mu sync.Mutex

	provider archive.Provider
	opts     config.ManagerOptions
	now      func() int64

	state State
	path  string
	pass  string
	repo  *repository.Repository

	lastReport validate.Report
}

// New returns a Closed manager using provider for archive I/O and opts for
// compression/backup/validation policy.
func New(provider archive.Provider, opts config.ManagerOptions, now func() int64) *Manager {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	return &Manager{provider: provider, opts: opts, now: now, state: Closed}
}

func (m *Manager) requireState(want State) error {
	if m.state != want {
		return vaulterr.NewCoreError(vaulterr.CoreInvalidState, "operation requires state %s, manager is %s", want, m.state)
	}
	return nil
}

// Create initializes a brand-new empty archive at path under passphrase and
// immediately writes it through the provider, so a freshly created archive
// is always valid and openable. Fails if path already exists or
// passphrase is shorter than MinPasswordLength.
func (m *Manager) Create(ctx context.Context, path, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Closed); err != nil {
		return err
	}
	if m.provider.Exists(path) {
		return vaulterr.NewCoreError(vaulterr.CoreValidationError, "archive already exists at %s", path)
	}
	if len(passphrase) < m.minPasswordLength() {
		return vaulterr.NewCoreError(vaulterr.CoreValidationError, "passphrase must be at least %d characters", m.minPasswordLength())
	}

	repo := repository.New(m.now)
	if err := repo.Initialize(); err != nil {
		return vaulterr.LiftErr(err)
	}
	fm, err := repo.SerializeToFiles()
	if err != nil {
		return vaulterr.LiftErr(err)
	}

	if err := m.provider.Create(ctx, path, passphrase, toBytes(fm)); err != nil {
		return vaulterr.LiftErr(err)
	}
	repo.MarkSaved()

	m.path, m.pass, m.repo, m.state = path, passphrase, repo, Open
	log.Info().Str("path", path).Msg("created new repository archive")
	return nil
}

// Open acquires the archive, extracts and deserializes it, and transitions
// the manager to Open. If DeepValidation is configured, the file map is
// validated structurally before being loaded; if AutoRepair is also
// configured, the report is non-critical, and every issue in it is
// auto-fixable, the repaired file map is loaded instead.
func (m *Manager) Open(ctx context.Context, path, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Closed); err != nil {
		return err
	}

	raw, err := m.provider.Extract(ctx, path, passphrase)
	if err != nil {
		return vaulterr.LiftErr(err)
	}
	fm := fromBytes(raw)

	if m.opts.DeepValidation {
		report, err := validate.Validate(fm)
		if err != nil {
			return vaulterr.LiftErr(err)
		}
		m.lastReport = report
		if report.HasCritical() {
			log.Error().Str("path", path).Int("issues", len(report.Issues)).Msg("repository failed deep validation")
		} else if m.opts.AutoRepair && len(report.Issues) > 0 && report.AutoFixable() {
			repaired, err := validate.Repair(fm, report)
			if err != nil {
				return vaulterr.LiftErr(err)
			}
			fm = repaired
			log.Info().Str("path", path).Msg("auto-repaired repository at open")
		}
	}

	repo := repository.New(m.now)
	if err := repo.LoadFromFiles(fm); err != nil {
		return vaulterr.LiftErr(err)
	}
	repo.MarkSaved()

	m.path, m.pass, m.repo, m.state = path, passphrase, repo, Open
	log.Info().Str("path", path).Msg("opened repository")
	return nil
}

// Save serializes the repository, rotates backups, and atomically rewrites
// the archive. On a provider failure after rotation, the prior archive is
// restored from backup.1.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return err
	}
	return m.saveLocked(ctx)
}

// saveLocked performs the serialize/rotate/write/mark-saved sequence; the
// caller must hold m.mu with the manager in Open state.
func (m *Manager) saveLocked(ctx context.Context) error {
	fm, err := m.repo.SerializeToFiles()
	if err != nil {
		return vaulterr.LiftErr(err)
	}

	rotated := false
	if m.opts.AutoBackup {
		if err := backup.Rotate(m.path, m.opts.BackupCount); err != nil {
			return vaulterr.LiftErr(err)
		}
		rotated = true
	}

	if err := m.provider.Create(ctx, m.path, m.pass, toBytes(fm)); err != nil {
		if rotated {
			if restoreErr := backup.Restore(m.path); restoreErr != nil {
				log.Error().Err(restoreErr).Str("path", m.path).Msg("failed to restore prior archive after failed save")
			}
		}
		return vaulterr.LiftErr(err)
	}

	m.repo.MarkSaved()
	log.Info().Str("path", m.path).Msg("saved repository")
	return nil
}

// Close saves if the repository is dirty (default policy), then drops the
// in-memory repository and transitions to Closed.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return err
	}

	if m.repo.IsModified() {
		if err := m.saveLocked(ctx); err != nil {
			return err
		}
	}

	m.repo = nil
	m.path = ""
	m.pass = ""
	m.state = Closed
	log.Info().Msg("closed repository")
	return nil
}

// ChangePassword re-encrypts the open archive under newPassphrase,
// delegating to the provider's atomic extract+create pair.
func (m *Manager) ChangePassword(ctx context.Context, oldPassphrase, newPassphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return err
	}
	if oldPassphrase != m.pass {
		return vaulterr.LiftErr(vaulterr.NewFileError(vaulterr.FileInvalidPassword, m.path, nil))
	}
	if len(newPassphrase) < m.minPasswordLength() {
		return vaulterr.NewCoreError(vaulterr.CoreValidationError, "new passphrase must be at least %d characters", m.minPasswordLength())
	}
	if err := m.provider.ChangePassword(ctx, m.path, oldPassphrase, newPassphrase); err != nil {
		return vaulterr.LiftErr(err)
	}
	m.pass = newPassphrase
	log.Info().Str("path", m.path).Msg("changed repository passphrase")
	return nil
}

// Add adds a credential to the open repository. Durable only after Save.
func (m *Manager) Add(rec credential.CredentialRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return "", err
	}
	id, err := m.repo.AddCredential(rec)
	if err != nil {
		return "", err
	}
	warnLoginCompleteness(id, rec)
	return id, nil
}

// Get returns a copy of the credential with the given id.
func (m *Manager) Get(id string) (credential.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return credential.CredentialRecord{}, err
	}
	return m.repo.GetCredential(id)
}

// Update replaces the credential with the given id.
func (m *Manager) Update(id string, rec credential.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return err
	}
	if err := m.repo.UpdateCredential(id, rec); err != nil {
		return err
	}
	warnLoginCompleteness(id, rec)
	return nil
}

// warnLoginCompleteness logs a non-fatal warning on every Add/Update of a
// login-typed credential missing a username/email or password field. It
// never blocks the write: the rule is advisory, and validate.Validate
// carries the same check for whole-repository passes
// (CodeLoginMissingFields).
func warnLoginCompleteness(id string, rec credential.CredentialRecord) {
	if missing := rec.MissingLoginFields(); len(missing) > 0 {
		log.Warn().Str("id", id).Strs("missing", missing).Msg("login credential missing recommended field")
	}
}

// Delete removes the credential with the given id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return err
	}
	return m.repo.DeleteCredential(id)
}

// List returns every credential, sorted by title then id.
func (m *Manager) List() ([]credential.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return nil, err
	}
	return m.repo.ListCredentials()
}

// ListSummaries returns the lightweight projection of every credential.
func (m *Manager) ListSummaries() ([]repository.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return nil, err
	}
	return m.repo.ListSummaries()
}

// Search ranks the open repository's credentials against query.
func (m *Manager) Search(query string) ([]search.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return nil, err
	}
	records, err := m.repo.ListCredentials()
	if err != nil {
		return nil, err
	}
	return search.Search(records, query), nil
}

// Stats summarizes the open repository.
func (m *Manager) Stats() (credential.RepositoryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return credential.RepositoryStats{}, err
	}
	return m.repo.Stats()
}

// Validate runs a structural validation pass over the open repository's
// current state, regardless of the DeepValidation config flag.
func (m *Manager) Validate() (validate.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return validate.Report{}, err
	}
	fm, err := m.repo.SerializeToFiles()
	if err != nil {
		return validate.Report{}, vaulterr.LiftErr(err)
	}
	report, err := validate.Validate(fm)
	if err != nil {
		return validate.Report{}, vaulterr.LiftErr(err)
	}
	m.lastReport = report
	return report, nil
}

// Repair runs a fresh validation pass over the open repository's serialized
// form, applies validate.Repair, and reloads the result. Refuses if the
// validation pass surfaces a Critical issue.
func (m *Manager) Repair() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireState(Open); err != nil {
		return err
	}
	fm, err := m.repo.SerializeToFiles()
	if err != nil {
		return vaulterr.LiftErr(err)
	}
	report, err := validate.Validate(fm)
	if err != nil {
		return vaulterr.LiftErr(err)
	}
	m.lastReport = report
	repaired, err := validate.Repair(fm, report)
	if err != nil {
		return vaulterr.LiftErr(err)
	}
	dirty := m.repo.IsModified()
	if err := m.repo.LoadFromFiles(repaired); err != nil {
		return vaulterr.LiftErr(err)
	}
	if dirty {
		m.repo.MarkModified()
	}
	return nil
}

// LastValidationReport returns the report from the most recent validation
// pass (a deep-validated Open, Validate, or Repair); the zero Report if
// none has run.
func (m *Manager) LastValidationReport() validate.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

// IsModified reports whether the open repository has unsaved changes.
func (m *Manager) IsModified() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Open {
		return false
	}
	return m.repo.IsModified()
}

// CurrentPath returns the path of the currently open archive, or "" if
// closed.
func (m *Manager) CurrentPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// IsOpen reports whether the manager currently holds an open repository.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Open
}

func (m *Manager) minPasswordLength() int {
	if m.opts.MinPasswordLength > 0 {
		return m.opts.MinPasswordLength
	}
	return config.Default().MinPasswordLength
}

func toBytes(fm credential.FileMap) archive.FileMapBytes {
	out := make(archive.FileMapBytes, len(fm))
	for k, v := range fm {
		out[k] = v
	}
	return out
}

func fromBytes(fm archive.FileMapBytes) credential.FileMap {
	out := make(credential.FileMap, len(fm))
	for k, v := range fm {
		out[k] = v
	}
	return out
}

// providerConfigFromOptions adapts a config.ManagerOptions into the
// archive.Config a Provider needs, kept here rather than in archive so the
// manager is the single place that translates host-facing option names
// into provider knobs.
func providerConfigFromOptions(opts config.ManagerOptions) archive.Config {
	return archive.Config{
		CompressionLevel:       opts.CompressionLevel,
		SolidCompression:       opts.SolidCompression,
		MultiThreadedComp:      opts.MultiThreadedCompression,
		MinPasswordLength:      opts.MinPasswordLength,
		FileLockTimeoutSeconds: opts.FileLockTimeoutSeconds,
	}
}

// NewDesktopManager is a convenience constructor wiring a DesktopProvider
// configured from opts, for hosts that don't need to inject a custom
// Provider (e.g. the mock, for tests).
func NewDesktopManager(opts config.ManagerOptions) *Manager {
	provider := archive.NewDesktopProvider(providerConfigFromOptions(opts))
	return New(provider, opts, nil)
}
