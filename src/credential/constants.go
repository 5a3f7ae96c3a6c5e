// Package credential defines the in-memory data model shared by every
// component that reads or writes a vaultcore archive: CredentialRecord,
// CredentialField, FieldType and RepositoryMetadata, plus the size limits
// and on-archive layout constants they obey.
package credential

const (
	MetadataFile            = "metadata.yml"
	CredentialsDir          = "credentials"
	CredentialsIndexFile    = CredentialsDir + "/index.yml"
	AttachmentsDir          = "attachments"

	CurrentVersion          = "1.0"
	CurrentFormat           = "memory-v1"
	CurrentStructureVersion = "1.0"
	Generator               = "vaultcore"

	MaxFieldValueLength     = 10_000
	MaxFieldsPerCredential  = 50
	MaxFieldMetadataEntries = 16
	MaxFieldLabelLength     = 200

	MaxTitleLength        = 200
	MaxNotesLength        = 10_000
	MaxTagLength          = 50
	MaxTagsPerCredential  = 10
	MaxFolderDepth        = 8

	FieldNamePattern = `^[a-zA-Z0-9_-]{1,64}$`
)

// FileMap represents the decrypted contents of an archive: archive-relative
// POSIX paths mapped to raw bytes.
type FileMap map[string][]byte

// RecordPath returns the canonical archive-relative path for a credential's
// record file.
func RecordPath(id string) string {
	return CredentialsDir + "/" + id + "/record.yml"
}
