// Package repository implements the in-memory credential store: a
// credential map plus auxiliary indices by tag, type, and folder, a dirty
// flag, and an initialized/uninitialized state. Pure memory: no I/O, no
// file locking, every error a *vaulterr.CoreError.
package repository

import (
	"sort"
	"strings"
	"sync"

	"github.com/vaultcore/vaultcore/src/credential"
	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// Summary is the lightweight projection returned by ListSummaries:
// id/title/type/tags/updated_at without field values.
type Summary struct {
	ID             string
	Title          string
	CredentialType string
	Tags           []string
	UpdatedAt      int64
}

// Repository is the in-memory credential store. The zero value is
// uninitialized; call Initialize or LoadFromFiles before any other
// operation.
type Repository struct {
	mu          sync.Mutex
	initialized bool
	credentials map[string]*credential.CredentialRecord
	metadata    credential.RepositoryMetadata
	modified    bool

	// attachments holds the archive's attachments/<id>/<name> entries,
	// opaque to the core: carried from LoadFromFiles back out through
	// SerializeToFiles so a load/save cycle never drops them.
	attachments map[string][]byte

	byTag    map[string]map[string]struct{}
	byType   map[string]map[string]struct{}
	byFolder map[string]map[string]struct{}

	now func() int64
}

// New returns an uninitialized repository. now supplies the current Unix
// timestamp (injected so callers control time instead of the package
// reaching for a wall clock directly).
func New(now func() int64) *Repository {
	return &Repository{now: now}
}

func (r *Repository) resetIndices() {
	r.byTag = make(map[string]map[string]struct{})
	r.byType = make(map[string]map[string]struct{})
	r.byFolder = make(map[string]map[string]struct{})
}

// Initialize transitions from uninitialized to empty. Fails with
// AlreadyInitialized if called twice.
func (r *Repository) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return vaulterr.NewCoreError(vaulterr.CoreAlreadyInitialized, "repository already initialized")
	}
	r.credentials = make(map[string]*credential.CredentialRecord)
	r.attachments = make(map[string][]byte)
	r.resetIndices()
	r.metadata = credential.NewRepositoryMetadata(r.now())
	r.initialized = true
	r.modified = false
	return nil
}

func (r *Repository) requireInitialized() error {
	if !r.initialized {
		return vaulterr.NewCoreError(vaulterr.CoreNotInitialized, "repository not initialized")
	}
	return nil
}

func (r *Repository) indexInsert(rec *credential.CredentialRecord) {
	for _, tag := range rec.Tags {
		if r.byTag[tag] == nil {
			r.byTag[tag] = make(map[string]struct{})
		}
		r.byTag[tag][rec.ID] = struct{}{}
	}
	if r.byType[rec.CredentialType] == nil {
		r.byType[rec.CredentialType] = make(map[string]struct{})
	}
	r.byType[rec.CredentialType][rec.ID] = struct{}{}
	if rec.FolderPath != "" {
		if r.byFolder[rec.FolderPath] == nil {
			r.byFolder[rec.FolderPath] = make(map[string]struct{})
		}
		r.byFolder[rec.FolderPath][rec.ID] = struct{}{}
	}
}

func (r *Repository) indexRemove(rec *credential.CredentialRecord) {
	for _, tag := range rec.Tags {
		delete(r.byTag[tag], rec.ID)
		if len(r.byTag[tag]) == 0 {
			delete(r.byTag, tag)
		}
	}
	delete(r.byType[rec.CredentialType], rec.ID)
	if len(r.byType[rec.CredentialType]) == 0 {
		delete(r.byType, rec.CredentialType)
	}
	if rec.FolderPath != "" {
		delete(r.byFolder[rec.FolderPath], rec.ID)
		if len(r.byFolder[rec.FolderPath]) == 0 {
			delete(r.byFolder, rec.FolderPath)
		}
	}
}

// AddCredential validates rec, assigns a fresh id if absent, rejects
// duplicate ids, and indexes it atomically.
func (r *Repository) AddCredential(rec credential.CredentialRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireInitialized(); err != nil {
		return "", err
	}
	if rec.ID == "" {
		now := r.now()
		fresh := credential.NewCredentialRecord(rec.Title, rec.CredentialType, now)
		fresh.Fields = rec.Fields
		fresh.Tags = rec.Tags
		fresh.Notes = rec.Notes
		fresh.Favorite = rec.Favorite
		fresh.FolderPath = rec.FolderPath
		rec = *fresh
	}
	if _, exists := r.credentials[rec.ID]; exists {
		return "", vaulterr.NewCoreError(vaulterr.CoreValidationError, "duplicate credential id %s", rec.ID)
	}
	rec.NormalizeFields()
	if err := rec.Validate(); err != nil {
		return "", vaulterr.NewCoreError(vaulterr.CoreValidationError, "%s", err)
	}
	stored := rec
	r.credentials[rec.ID] = &stored
	r.indexInsert(&stored)
	r.modified = true
	return rec.ID, nil
}

// GetCredential returns a copy of the record with the given id; the
// repository owns the canonical value.
func (r *Repository) GetCredential(id string) (credential.CredentialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireInitialized(); err != nil {
		return credential.CredentialRecord{}, err
	}
	rec, ok := r.credentials[id]
	if !ok {
		return credential.CredentialRecord{}, vaulterr.NewCoreError(vaulterr.CoreCredentialNotFound, "credential %s not found", id)
	}
	return *rec, nil
}

// UpdateCredential replaces the stored record, preserving CreatedAt and
// bumping UpdatedAt to now; rec.ID must equal id.
func (r *Repository) UpdateCredential(id string, rec credential.CredentialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireInitialized(); err != nil {
		return err
	}
	existing, ok := r.credentials[id]
	if !ok {
		return vaulterr.NewCoreError(vaulterr.CoreCredentialNotFound, "credential %s not found", id)
	}
	if rec.ID != id {
		return vaulterr.NewCoreError(vaulterr.CoreValidationError, "record id %s does not match target %s", rec.ID, id)
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = r.now()
	rec.NormalizeFields()
	if err := rec.Validate(); err != nil {
		return vaulterr.NewCoreError(vaulterr.CoreValidationError, "%s", err)
	}
	r.indexRemove(existing)
	updated := rec
	r.credentials[id] = &updated
	r.indexInsert(&updated)
	r.modified = true
	return nil
}

// DeleteCredential removes the record and its index entries.
func (r *Repository) DeleteCredential(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireInitialized(); err != nil {
		return err
	}
	rec, ok := r.credentials[id]
	if !ok {
		return vaulterr.NewCoreError(vaulterr.CoreCredentialNotFound, "credential %s not found", id)
	}
	r.indexRemove(rec)
	delete(r.credentials, id)
	attachPrefix := credential.AttachmentsDir + "/" + id + "/"
	for path := range r.attachments {
		if strings.HasPrefix(path, attachPrefix) {
			delete(r.attachments, path)
		}
	}
	r.modified = true
	return nil
}

// ListCredentials returns every record, sorted by title then id.
func (r *Repository) ListCredentials() ([]credential.CredentialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireInitialized(); err != nil {
		return nil, err
	}
	out := make([]credential.CredentialRecord, 0, len(r.credentials))
	for _, rec := range r.credentials {
		out = append(out, *rec)
	}
	sortRecords(out)
	return out, nil
}

// ListSummaries returns the lightweight projection, sorted by title then id.
func (r *Repository) ListSummaries() ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireInitialized(); err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(r.credentials))
	for _, rec := range r.credentials {
		out = append(out, Summary{
			ID:             rec.ID,
			Title:          rec.Title,
			CredentialType: rec.CredentialType,
			Tags:           rec.Tags,
			UpdatedAt:      rec.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func sortRecords(recs []credential.CredentialRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Title != recs[j].Title {
			return recs[i].Title < recs[j].Title
		}
		return recs[i].ID < recs[j].ID
	})
}

// IDsByTag returns credential ids indexed under tag, for use by the search
// engine (C12).
func (r *Repository) IDsByTag(tag string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return setKeys(r.byTag[tag])
}

// IDsByType returns credential ids indexed under credentialType.
func (r *Repository) IDsByType(credentialType string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return setKeys(r.byType[credentialType])
}

// IDsByFolder returns credential ids indexed under folderPath.
func (r *Repository) IDsByFolder(folderPath string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return setKeys(r.byFolder[folderPath])
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsModified reports whether the repository has unsaved changes.
func (r *Repository) IsModified() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modified
}

// MarkSaved clears the modified flag; callable only by the manager after a
// successful save.
func (r *Repository) MarkSaved() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modified = false
}

// MarkModified restores the dirty flag after an in-memory reload left state
// that has not been written to disk; used by the manager's repair path,
// where LoadFromFiles would otherwise erase the flag set by earlier
// mutations.
func (r *Repository) MarkModified() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modified = true
}

// Metadata returns a copy of the current repository metadata.
func (r *Repository) Metadata() credential.RepositoryMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadata
}

// Stats summarizes the repository for the manager's Stats() call.
func (r *Repository) Stats() (credential.RepositoryStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireInitialized(); err != nil {
		return credential.RepositoryStats{}, err
	}
	stats := credential.RepositoryStats{
		CredentialCount: len(r.credentials),
		TypeCounts:      make(map[string]int),
		TagCounts:       make(map[string]int),
		LastModified:    r.metadata.LastModified,
	}
	for t, ids := range r.byType {
		stats.TypeCounts[t] = len(ids)
	}
	for tag, ids := range r.byTag {
		stats.TagCounts[tag] = len(ids)
	}
	for _, rec := range r.credentials {
		if rec.Favorite {
			stats.FavoriteCount++
		}
	}
	return stats, nil
}
