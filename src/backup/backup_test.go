package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultcore/vaultcore/src/archive"
	"github.com/vaultcore/vaultcore/src/credential"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRotateKeepsOnlyCountBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.7z")

	for i := 0; i < 4; i++ {
		writeFile(t, path, "generation")
		require.NoError(t, Rotate(path, 2))
	}

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "expected path itself to have been rotated away, err=%v", err)

	_, err = os.Stat(slotPath(path, 1))
	require.NoError(t, err, "expected backup.1 to exist")

	_, err = os.Stat(slotPath(path, 2))
	require.NoError(t, err, "expected backup.2 to exist")

	_, err = os.Stat(slotPath(path, 3))
	require.True(t, os.IsNotExist(err), "expected backup.3 to not exist, err=%v", err)
}

func TestRotateNoopWhenArchiveAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.7z")
	require.NoError(t, Rotate(path, 3))
}

func TestRestoreBringsBackupBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.7z")
	writeFile(t, path, "original")
	require.NoError(t, Rotate(path, 2))
	require.NoError(t, Restore(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "original", string(data))
}

func TestExportEncryptedRoundTrips(t *testing.T) {
	provider := archive.NewMockProvider()
	fm := credential.FileMap{"metadata.yml": []byte("version: 1.0")}
	dest := filepath.Join(t.TempDir(), "export.7z")

	require.NoError(t, ExportEncrypted(context.Background(), provider, dest, "exportpass123", fm))
	got, err := provider.Extract(context.Background(), dest, "exportpass123")
	require.NoError(t, err)
	require.Equal(t, "version: 1.0", string(got["metadata.yml"]))
}

func TestExportPlaintextRedactsSensitiveValues(t *testing.T) {
	rec := credential.CredentialRecord{
		ID:             "11111111-1111-1111-1111-111111111111",
		Title:          "Gmail",
		CredentialType: "login",
		Fields: map[string]credential.CredentialField{
			"username": credential.NewField(credential.FieldUsername, "alice", false),
			"password": credential.NewField(credential.FieldPassword, "hunter2", false),
		},
	}
	dest := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, ExportPlaintext(dest, []credential.CredentialRecord{rec}, false))
	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "hunter2"), "plaintext export leaked a sensitive value: %s", raw)

	var decoded []exportRecord
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, redactedMarker, decoded[0].Fields["password"])
	require.Equal(t, "alice", decoded[0].Fields["username"])
}

func TestExportPlaintextCompressed(t *testing.T) {
	rec := credential.CredentialRecord{
		ID:             "22222222-2222-2222-2222-222222222222",
		Title:          "Note",
		CredentialType: "note",
		Fields:         map[string]credential.CredentialField{},
	}
	dest := filepath.Join(t.TempDir(), "export.json.zst")
	require.NoError(t, ExportPlaintext(dest, []credential.CredentialRecord{rec}, true))
	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
}
