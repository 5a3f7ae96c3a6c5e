// Package backup implements pre-save backup rotation and the two export
// envelopes: an encrypted 7z re-export under a caller-supplied passphrase,
// and a redacted plaintext JSON dump for debugging, optionally
// zstd-compressed. Rotation uses atomic renames only, never copies.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/vaultcore/vaultcore/src/archive"
	"github.com/vaultcore/vaultcore/src/credential"
	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// Rotate performs the backup rotation that precedes a save: existing
// backups shift up one slot (foo.7z.backup.1 -> .backup.2 -> ...),
// anything beyond count is discarded, and the current archive at path (if it
// exists) becomes foo.7z.backup.1. Each shift is an atomic os.Rename, never a
// copy, so a crash mid-rotation leaves a gap rather than a duplicate.
func Rotate(path string, count int) error {
	if count <= 0 {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil // nothing to rotate yet (first save of a freshly created archive)
		}
		return vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}

	// Discard anything beyond the retained count, oldest first.
	if existing, err := os.Stat(slotPath(path, count)); err == nil && !existing.IsDir() {
		if err := os.Remove(slotPath(path, count)); err != nil {
			return vaulterr.NewFileError(vaulterr.FileIoError, slotPath(path, count), err)
		}
	}
	for n := count - 1; n >= 1; n-- {
		src, dst := slotPath(path, n), slotPath(path, n+1)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return vaulterr.NewFileError(vaulterr.FileIoError, src, err)
		}
	}
	if err := os.Rename(path, slotPath(path, 1)); err != nil {
		return vaulterr.NewFileError(vaulterr.FileIoError, path, err)
	}
	log.Debug().Str("path", path).Int("count", count).Msg("rotated backups")
	return nil
}

// Restore reverses a Rotate call that ran but whose subsequent write never
// landed: it moves backup.1 back to path. Used by manager.Save's rollback
// path when Provider.Create fails after rotation succeeded.
func Restore(path string) error {
	slot1 := slotPath(path, 1)
	if _, err := os.Stat(slot1); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return vaulterr.NewFileError(vaulterr.FileIoError, slot1, err)
	}
	if err := os.Rename(slot1, path); err != nil {
		return vaulterr.NewFileError(vaulterr.FileIoError, slot1, err)
	}
	log.Warn().Str("path", path).Msg("restored prior archive from backup.1 after failed save")
	return nil
}

func slotPath(path string, n int) string {
	return fmt.Sprintf("%s.backup.%d", path, n)
}

// ExportEncrypted writes fm as a brand-new encrypted 7z archive at
// destPath under passphrase, using the same Provider.Create contract the
// manager uses for ordinary saves.
func ExportEncrypted(ctx context.Context, provider archive.Provider, destPath, passphrase string, fm credential.FileMap) error {
	files := make(archive.FileMapBytes, len(fm))
	for k, v := range fm {
		files[k] = v
	}
	return provider.Create(ctx, destPath, passphrase, files)
}

// exportRecord is the plaintext-export shape of one credential: sensitive
// field values are replaced by a structural redaction marker rather than
// omitted, so the export's shape still documents which fields existed.
type exportRecord struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	CredentialType string            `json:"credential_type"`
	Fields         map[string]string `json:"fields"`
	Tags           []string          `json:"tags,omitempty"`
	Favorite       bool              `json:"favorite"`
	FolderPath     string            `json:"folder_path,omitempty"`
}

const redactedMarker = "<redacted:sensitive>"

// ExportPlaintext renders records as redacted JSON, for debugging only;
// the output file itself is unencrypted. When compress is true the JSON is
// zstd-compressed before being written.
func ExportPlaintext(destPath string, records []credential.CredentialRecord, compress bool) error {
	log.Warn().Str("path", destPath).Msg("exporting plaintext credential dump; sensitive values are redacted but this file is not encrypted")

	out := make([]exportRecord, 0, len(records))
	for _, r := range records {
		fields := make(map[string]string, len(r.Fields))
		for name, f := range r.Fields {
			if f.Sensitive {
				fields[name] = redactedMarker
				continue
			}
			fields[name] = f.Value
		}
		out = append(out, exportRecord{
			ID:             r.ID,
			Title:          r.Title,
			CredentialType: r.CredentialType,
			Fields:         fields,
			Tags:           r.Tags,
			Favorite:       r.Favorite,
			FolderPath:     r.FolderPath,
		})
	}

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return vaulterr.NewCoreError(vaulterr.CoreSerializationError, "encode plaintext export: %s", err)
	}

	if compress {
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return vaulterr.NewCoreError(vaulterr.CoreInternalError, "create zstd writer: %s", err)
		}
		if _, err := enc.Write(payload); err != nil {
			enc.Close()
			return vaulterr.NewCoreError(vaulterr.CoreInternalError, "zstd compress export: %s", err)
		}
		if err := enc.Close(); err != nil {
			return vaulterr.NewCoreError(vaulterr.CoreInternalError, "close zstd writer: %s", err)
		}
		payload = buf.Bytes()
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
		return vaulterr.NewFileError(vaulterr.FileIoError, destPath, err)
	}
	if err := os.WriteFile(destPath, payload, 0o600); err != nil {
		return vaulterr.NewFileError(vaulterr.FileIoError, destPath, err)
	}
	return nil
}
