package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultcore/vaultcore/src/archive"
	"github.com/vaultcore/vaultcore/src/config"
	"github.com/vaultcore/vaultcore/src/credential"
	"github.com/vaultcore/vaultcore/src/vaulterr"
)

func clock(t int64) func() int64 { return func() int64 { return t } }

func newTestManager(opts config.ManagerOptions) (*Manager, *archive.MockProvider) {
	provider := archive.NewMockProvider()
	return New(provider, opts, clock(1000)), provider
}

func loginCredential() credential.CredentialRecord {
	return credential.CredentialRecord{
		Title:          "Gmail",
		CredentialType: "login",
		Fields: map[string]credential.CredentialField{
			"username": credential.NewField(credential.FieldUsername, "a@b.c", false),
			"password": credential.NewField(credential.FieldPassword, "p4ssw0rd!", false),
		},
	}
}

func TestCreateAddSaveCloseReopen(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(config.Default())

	require.NoError(t, m.Create(ctx, "/vaults/t.7z", "correct-horse-battery-staple"))
	id, err := m.Add(loginCredential())
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx))
	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Open(ctx, "/vaults/t.7z", "correct-horse-battery-staple"))

	got, err := m.Get(id)
	require.NoError(t, err)
	pw := got.Fields["password"]
	require.Equal(t, "p4ssw0rd!", pw.Value)
	require.True(t, pw.Sensitive)
}

func TestOpenWrongPasswordFails(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(config.Default())
	require.NoError(t, m.Create(ctx, "/vaults/t.7z", "correct-horse-battery-staple"))
	require.NoError(t, m.Close(ctx))

	err := m.Open(ctx, "/vaults/t.7z", "wrong")
	require.Error(t, err)
	ce, ok := err.(*vaulterr.CoreError)
	require.True(t, ok, "expected lifted CoreError, got %T", err)
	require.Equal(t, vaulterr.CoreFileOperation, ce.Reason)
	require.False(t, m.IsOpen(), "expected manager to remain closed after failed open")
}

func TestUpdatePersists(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(config.Default())
	require.NoError(t, m.Create(ctx, "/vaults/t.7z", "correct-horse-battery-staple"))
	id, err := m.Add(loginCredential())
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx))

	rec, err := m.Get(id)
	require.NoError(t, err)
	rec.Title = "Gmail (work)"
	rec.Fields["password"] = credential.NewField(credential.FieldPassword, "newpass1!", false)
	require.NoError(t, m.Update(id, rec))
	require.NoError(t, m.Save(ctx))
	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Open(ctx, "/vaults/t.7z", "correct-horse-battery-staple"))

	got, err := m.Get(id)
	require.NoError(t, err)
	require.Equal(t, "Gmail (work)", got.Title)
	require.Equal(t, "newpass1!", got.Fields["password"].Value)
}

// TestBackupRotation uses real files on disk, since the backup package
// operates on the filesystem regardless of which Provider is in use.
func TestBackupRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.7z")
	provider := archive.NewDesktopProvider(archive.DefaultConfig())

	opts := config.Default()
	opts.BackupCount = 2
	m := New(provider, opts, clock(1000))

	ctx := context.Background()
	if err := m.Create(ctx, path, "correct-horse-battery-staple12"); err != nil {
		t.Skipf("skipping: desktop provider requires the 7z CLI: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, err := m.Add(loginCredential())
		require.NoError(t, err)
		require.NoError(t, m.Save(ctx))
	}

	_, err := os.Stat(path)
	require.NoError(t, err, "expected current archive to exist")
	_, err = os.Stat(path + ".backup.1")
	require.NoError(t, err, "expected backup.1 to exist")
	_, err = os.Stat(path + ".backup.2")
	require.NoError(t, err, "expected backup.2 to exist")
	_, err = os.Stat(path + ".backup.3")
	require.True(t, os.IsNotExist(err), "expected backup.3 to not exist")
}

func TestDirtyTrackingFollowsMutations(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(config.Default())
	require.NoError(t, m.Create(ctx, "/vaults/t.7z", "correct-horse-battery-staple"))
	require.False(t, m.IsModified(), "expected clean state immediately after create")

	id, err := m.Add(loginCredential())
	require.NoError(t, err)
	require.True(t, m.IsModified(), "expected dirty after add")

	require.NoError(t, m.Save(ctx))
	require.False(t, m.IsModified(), "expected clean after save")

	require.NoError(t, m.Delete(id))
	require.True(t, m.IsModified(), "expected dirty after delete")
}

func TestOperationsRequireOpenState(t *testing.T) {
	m, _ := newTestManager(config.Default())
	_, err := m.Add(loginCredential())
	require.Error(t, err, "expected InvalidState error on a closed manager")
	ce, ok := err.(*vaulterr.CoreError)
	require.True(t, ok, "expected CoreError, got %T", err)
	require.Equal(t, vaulterr.CoreInvalidState, ce.Reason)
}

func TestCreateFailsIfArchiveExists(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(config.Default())
	require.NoError(t, m.Create(ctx, "/vaults/t.7z", "correct-horse-battery-staple"))
	require.NoError(t, m.Close(ctx))

	m2, provider2 := newTestManager(config.Default())
	provider2.Seed("/vaults/t.7z", "correct-horse-battery-staple", archive.FileMapBytes{"metadata.yml": []byte("x")})
	require.Error(t, m2.Create(ctx, "/vaults/t.7z", "correct-horse-battery-staple"), "expected create to fail when archive already exists")
}

func TestCreateRejectsShortPassphrase(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(config.Default())
	require.Error(t, m.Create(ctx, "/vaults/t.7z", "short"), "expected passphrase-length validation error")
}

func TestRepairWithoutPriorValidate(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(config.Default())
	require.NoError(t, m.Create(ctx, "/vaults/t.7z", "correct-horse-battery-staple"))
	id, err := m.Add(loginCredential())
	require.NoError(t, err)

	require.NoError(t, m.Repair())

	got, err := m.Get(id)
	require.NoError(t, err)
	require.Equal(t, "Gmail", got.Title)
	require.True(t, m.IsModified(), "repair must not clear the dirty flag set by the earlier add")
}

func TestSearchRanking(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(config.Default())
	require.NoError(t, m.Create(ctx, "/vaults/t.7z", "correct-horse-battery-staple"))

	titles := []string{"Gmail", "Gmail Work", "Email archive"}
	for _, title := range titles {
		rec := credential.CredentialRecord{Title: title, CredentialType: "login", Fields: map[string]credential.CredentialField{}}
		_, err := m.Add(rec)
		require.NoError(t, err, "add %s", title)
	}
	results, err := m.Search("Gmail")
	require.NoError(t, err)
	require.Len(t, results, 3)

	records, _ := m.List()
	byID := make(map[string]string, len(records))
	for _, r := range records {
		byID[r.ID] = r.Title
	}
	got := []string{byID[results[0].ID], byID[results[1].ID], byID[results[2].ID]}
	want := []string{"Gmail", "Gmail Work", "Email archive"}
	require.Equal(t, want, got)
}
