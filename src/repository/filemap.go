package repository

import (
	"strings"

	"github.com/vaultcore/vaultcore/src/codec"
	"github.com/vaultcore/vaultcore/src/credential"
	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// LoadFromFiles clears current state and rebuilds the repository from an
// extracted archive's FileMap: metadata.yml, then each
// credentials/<id>/record.yml. On any malformed content the repository is
// left uninitialized; a partially loaded repository is never exposed.
func (r *Repository) LoadFromFiles(fm credential.FileMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	metaBytes, ok := fm[credential.MetadataFile]
	if !ok {
		r.initialized = false
		return vaulterr.NewCoreError(vaulterr.CoreStructureError, "missing %s", credential.MetadataFile)
	}
	meta, err := codec.DecodeMetadata(metaBytes)
	if err != nil {
		r.initialized = false
		return err
	}

	records := make(map[string]*credential.CredentialRecord)
	attachments := make(map[string][]byte)
	attachPrefix := credential.AttachmentsDir + "/"
	prefix := credential.CredentialsDir + "/"
	for path, data := range fm {
		if strings.HasPrefix(path, attachPrefix) {
			attachments[path] = data
			continue
		}
		if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, "/record.yml") {
			continue
		}
		dirID := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/record.yml")
		rec, err := codec.DecodeCredential(data)
		if err != nil {
			r.initialized = false
			return err
		}
		if rec.ID != dirID {
			r.initialized = false
			return vaulterr.NewCoreError(vaulterr.CoreStructureError, "record id %s does not match directory %s", rec.ID, dirID)
		}
		if _, dup := records[rec.ID]; dup {
			r.initialized = false
			return vaulterr.NewCoreError(vaulterr.CoreStructureError, "duplicate credential id %s", rec.ID)
		}
		records[rec.ID] = rec
	}

	r.credentials = records
	r.attachments = attachments
	r.metadata = *meta
	r.resetIndices()
	for _, rec := range records {
		r.indexInsert(rec)
	}
	r.initialized = true
	r.modified = false
	return nil
}

// SerializeToFiles produces the canonical on-archive layout: metadata.yml,
// credentials/index.yml, and one credentials/<id>/record.yml per
// credential, with metadata's credential_count and last_modified refreshed
// to now.
func (r *Repository) SerializeToFiles() (credential.FileMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireInitialized(); err != nil {
		return nil, err
	}

	r.metadata.CredentialCount = len(r.credentials)
	r.metadata.LastModified = r.now()

	fm := make(credential.FileMap, len(r.credentials)*2+2)

	metaBytes, err := codec.EncodeMetadata(&r.metadata)
	if err != nil {
		return nil, err
	}
	fm[credential.MetadataFile] = metaBytes

	idxBytes, err := codec.EncodeIndex(r.credentials)
	if err != nil {
		return nil, err
	}
	fm[credential.CredentialsIndexFile] = idxBytes

	for id, rec := range r.credentials {
		recBytes, err := codec.EncodeCredential(rec)
		if err != nil {
			return nil, err
		}
		fm[credential.RecordPath(id)] = recBytes
	}

	// Attachments are opaque to the core but must survive a load/save
	// cycle; deleted credentials already had theirs dropped in
	// DeleteCredential.
	for path, data := range r.attachments {
		fm[path] = data
	}

	return fm, nil
}
