// Package codec serializes and deserializes the on-archive YAML records
// (CredentialRecord, RepositoryMetadata, the credentials index) and the
// base64 FileMap envelope used for host FFI exchange. Deliberately does
// NOT fall back to synthesizing a record from its filename or directory
// name when structural parsing fails; a malformed record is a validation
// failure, never a best-effort reconstruction.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vaultcore/vaultcore/src/credential"
	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// EncodeCredential serializes a credential record to YAML.
func EncodeCredential(r *credential.CredentialRecord) ([]byte, error) {
	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "encode credential: %s", err)
	}
	return out, nil
}

// DecodeCredential parses a YAML credential record. It first parses as a
// generic YAML document to distinguish a syntax error from a structural one,
// then as the typed struct; it never falls back to reconstructing fields
// from surrounding context.
func DecodeCredential(data []byte) (*credential.CredentialRecord, error) {
	var probe yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "invalid YAML syntax: %s", err)
	}
	var r credential.CredentialRecord
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "invalid credential structure: %s", err)
	}
	if err := r.Validate(); err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreValidationError, "%s", err)
	}
	return &r, nil
}

// EncodeMetadata serializes repository metadata to YAML.
func EncodeMetadata(m *credential.RepositoryMetadata) ([]byte, error) {
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "encode metadata: %s", err)
	}
	return out, nil
}

// DecodeMetadata parses repository metadata, rejecting syntax errors and a
// document missing version or structure_version; other absent fields are
// left at their zero values.
func DecodeMetadata(data []byte) (*credential.RepositoryMetadata, error) {
	var probe yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "invalid YAML syntax: %s", err)
	}
	var m credential.RepositoryMetadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "invalid metadata structure: %s", err)
	}
	if m.Version == "" || m.StructureVersion == "" {
		return nil, vaulterr.NewCoreError(vaulterr.CoreStructureError, "metadata missing version or structure_version")
	}
	return &m, nil
}

// indexEntry is one row of the credentials/index.yml summary file; it
// carries only the fields the repository needs to rebuild its auxiliary
// indices without reading every record body.
type indexEntry struct {
	ID             string   `yaml:"id"`
	Title          string   `yaml:"title"`
	CredentialType string   `yaml:"credential_type"`
	Tags           []string `yaml:"tags,omitempty"`
	CreatedAt      int64    `yaml:"created_at"`
	UpdatedAt      int64    `yaml:"updated_at"`
}

type credentialIndex struct {
	Version         string       `yaml:"version"`
	CredentialCount int          `yaml:"credential_count"`
	Credentials     []indexEntry `yaml:"credentials"`
}

// EncodeIndex builds the credentials/index.yml content from the full record
// set, sorted by title then id for stable diffs across saves.
func EncodeIndex(records map[string]*credential.CredentialRecord) ([]byte, error) {
	entries := make([]indexEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, indexEntry{
			ID:             r.ID,
			Title:          r.Title,
			CredentialType: r.CredentialType,
			Tags:           r.Tags,
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Title != entries[j].Title {
			return entries[i].Title < entries[j].Title
		}
		return entries[i].ID < entries[j].ID
	})
	idx := credentialIndex{
		Version:         credential.CurrentVersion,
		CredentialCount: len(entries),
		Credentials:     entries,
	}
	out, err := yaml.Marshal(idx)
	if err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "encode index: %s", err)
	}
	return out, nil
}

// EncodeFileMap serializes a FileMap to base64-wrapped JSON for host FFI
// exchange.
func EncodeFileMap(fm credential.FileMap) ([]byte, error) {
	encoded := make(map[string]string, len(fm))
	for path, data := range fm {
		encoded[path] = base64.StdEncoding.EncodeToString(data)
	}
	out, err := json.Marshal(encoded)
	if err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "encode file map: %s", err)
	}
	return out, nil
}

// DecodeFileMap parses the base64-wrapped JSON envelope back into a FileMap.
func DecodeFileMap(data []byte) (credential.FileMap, error) {
	var encoded map[string]string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "decode file map: %s", err)
	}
	fm := make(credential.FileMap, len(encoded))
	for path, b64 := range encoded {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, vaulterr.NewCoreError(vaulterr.CoreSerializationError, "decode file map entry %s: %s", path, err)
		}
		fm[path] = raw
	}
	return fm, nil
}

// ValidateCredentialYAML checks syntax and structure without returning the
// parsed record.
func ValidateCredentialYAML(data []byte) error {
	_, err := DecodeCredential(data)
	return err
}

// ValidateMetadataYAML checks syntax and structure without returning the
// parsed metadata.
func ValidateMetadataYAML(data []byte) error {
	_, err := DecodeMetadata(data)
	return err
}
