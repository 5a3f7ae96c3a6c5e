package repository

import (
	"testing"

	"github.com/vaultcore/vaultcore/src/codec"
	"github.com/vaultcore/vaultcore/src/credential"
	"github.com/vaultcore/vaultcore/src/vaulterr"
)

func clock(t int64) func() int64 {
	return func() int64 { return t }
}

func TestInitializeTwiceFails(t *testing.T) {
	r := New(clock(1000))
	if err := r.Initialize(); err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	err := r.Initialize()
	if err == nil {
		t.Fatalf("expected AlreadyInitialized error")
	}
	var ce *vaulterr.CoreError
	if ce, _ = err.(*vaulterr.CoreError); ce == nil || ce.Reason != vaulterr.CoreAlreadyInitialized {
		t.Fatalf("expected CoreAlreadyInitialized, got %v", err)
	}
}

func TestOperationsBeforeInitializeFail(t *testing.T) {
	r := New(clock(1000))
	if _, err := r.GetCredential("x"); err == nil {
		t.Fatalf("expected NotInitialized error")
	}
}

func TestAddCredentialAssignsIDAndIndexes(t *testing.T) {
	r := New(clock(1000))
	_ = r.Initialize()
	rec := credential.CredentialRecord{
		Title:          "GitHub",
		CredentialType: "login",
		Fields:         map[string]credential.CredentialField{},
		Tags:           []string{"work"},
	}
	id, err := r.AddCredential(rec)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
	if ids := r.IDsByTag("work"); len(ids) != 1 || ids[0] != id {
		t.Fatalf("expected tag index to contain %s, got %v", id, ids)
	}
	if ids := r.IDsByType("login"); len(ids) != 1 {
		t.Fatalf("expected type index to contain 1 entry, got %v", ids)
	}
	if !r.IsModified() {
		t.Fatalf("expected modified flag set after add")
	}
}

func TestAddCredentialRejectsDuplicateID(t *testing.T) {
	r := New(clock(1000))
	_ = r.Initialize()
	rec := *credential.NewCredentialRecord("x", "login", 1000)
	id, err := r.AddCredential(rec)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	rec.ID = id
	if _, err := r.AddCredential(rec); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}
}

func TestUpdateCredentialPreservesCreatedAtAndBumpsUpdatedAt(t *testing.T) {
	r := New(clock(1000))
	_ = r.Initialize()
	rec := *credential.NewCredentialRecord("x", "login", 1000)
	id, _ := r.AddCredential(rec)

	r.now = clock(2000)
	got, _ := r.GetCredential(id)
	got.Title = "y"
	if err := r.UpdateCredential(id, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _ := r.GetCredential(id)
	if updated.CreatedAt != 1000 {
		t.Fatalf("expected CreatedAt preserved, got %d", updated.CreatedAt)
	}
	if updated.UpdatedAt != 2000 {
		t.Fatalf("expected UpdatedAt bumped to 2000, got %d", updated.UpdatedAt)
	}
	if updated.Title != "y" {
		t.Fatalf("expected title updated")
	}
}

func TestUpdateCredentialRejectsMismatchedID(t *testing.T) {
	r := New(clock(1000))
	_ = r.Initialize()
	rec := *credential.NewCredentialRecord("x", "login", 1000)
	id, _ := r.AddCredential(rec)
	other := *credential.NewCredentialRecord("y", "login", 1000)
	if err := r.UpdateCredential(id, other); err == nil {
		t.Fatalf("expected id mismatch to fail")
	}
}

func TestDeleteCredentialRemovesFromIndices(t *testing.T) {
	r := New(clock(1000))
	_ = r.Initialize()
	rec := *credential.NewCredentialRecord("x", "login", 1000)
	rec.Tags = []string{"work"}
	id, _ := r.AddCredential(rec)
	if err := r.DeleteCredential(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetCredential(id); err == nil {
		t.Fatalf("expected not found after delete")
	}
	if ids := r.IDsByTag("work"); len(ids) != 0 {
		t.Fatalf("expected tag index emptied, got %v", ids)
	}
}

func TestDeleteCredentialNotFound(t *testing.T) {
	r := New(clock(1000))
	_ = r.Initialize()
	if err := r.DeleteCredential("missing"); err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestListCredentialsSortedByTitleThenID(t *testing.T) {
	r := New(clock(1000))
	_ = r.Initialize()
	_, _ = r.AddCredential(*credential.NewCredentialRecord("Zebra", "login", 1000))
	_, _ = r.AddCredential(*credential.NewCredentialRecord("Apple", "login", 1000))
	list, err := r.ListCredentials()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list[0].Title != "Apple" || list[1].Title != "Zebra" {
		t.Fatalf("expected sorted order, got %+v", list)
	}
	_, _ = r.AddCredential(*credential.NewCredentialRecord("Mango", "login", 1000))
	_, _ = r.AddCredential(*credential.NewCredentialRecord("Mango", "login", 1000))
	list, err = r.ListCredentials()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list[1].Title != "Mango" || list[2].Title != "Mango" || list[1].ID >= list[2].ID {
		t.Fatalf("expected equal titles ordered by id, got %+v", list)
	}
}

func TestMarkSavedClearsModified(t *testing.T) {
	r := New(clock(1000))
	_ = r.Initialize()
	_, _ = r.AddCredential(*credential.NewCredentialRecord("x", "login", 1000))
	if !r.IsModified() {
		t.Fatalf("expected modified after add")
	}
	r.MarkSaved()
	if r.IsModified() {
		t.Fatalf("expected modified cleared after MarkSaved")
	}
}

func TestFileMapRoundTripPreservesCredentialSetAndMetadata(t *testing.T) {
	r := New(clock(1000))
	_ = r.Initialize()
	_, _ = r.AddCredential(*credential.NewCredentialRecord("GitHub", "login", 1000))
	_, _ = r.AddCredential(*credential.NewCredentialRecord("Email", "login", 1000))

	fm, err := r.SerializeToFiles()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	r2 := New(clock(2000))
	if err := r2.LoadFromFiles(fm); err != nil {
		t.Fatalf("load: %v", err)
	}

	before, _ := r.ListCredentials()
	after, _ := r2.ListCredentials()
	if len(before) != len(after) {
		t.Fatalf("expected same credential count, got %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Title != after[i].Title {
			t.Fatalf("mismatch at %d: %+v vs %+v", i, before[i], after[i])
		}
	}
	statsBefore, _ := r.Stats()
	statsAfter, _ := r2.Stats()
	if statsBefore.CredentialCount != statsAfter.CredentialCount {
		t.Fatalf("expected matching credential_count after round trip")
	}
	metaBefore, metaAfter := r.Metadata(), r2.Metadata()
	metaBefore.LastModified, metaAfter.LastModified = 0, 0
	if metaBefore != metaAfter {
		t.Fatalf("expected metadata preserved across round trip: %+v vs %+v", metaBefore, metaAfter)
	}
}

func TestLoadFromFilesRejectsMismatchedRecordID(t *testing.T) {
	rec := credential.NewCredentialRecord("x", "login", 1000)
	recBytes, err := codec.EncodeCredential(rec)
	if err != nil {
		t.Fatalf("encode credential: %v", err)
	}
	meta := credential.NewRepositoryMetadata(1000)
	metaBytes, err := codec.EncodeMetadata(&meta)
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	fm := credential.FileMap{
		credential.MetadataFile:           metaBytes,
		"credentials/wrong-id/record.yml": recBytes,
	}
	r2 := New(clock(2000))
	if err := r2.LoadFromFiles(fm); err == nil {
		t.Fatalf("expected structure error for mismatched record id")
	}
}

func TestAttachmentsSurviveLoadSaveCycle(t *testing.T) {
	rec := credential.NewCredentialRecord("x", "login", 1000)
	recBytes, err := codec.EncodeCredential(rec)
	if err != nil {
		t.Fatalf("encode credential: %v", err)
	}
	meta := credential.NewRepositoryMetadata(1000)
	meta.CredentialCount = 1
	metaBytes, err := codec.EncodeMetadata(&meta)
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	attachPath := "attachments/" + rec.ID + "/scan.pdf"
	fm := credential.FileMap{
		credential.MetadataFile:       metaBytes,
		credential.RecordPath(rec.ID): recBytes,
		attachPath:                    []byte{0x25, 0x50, 0x44, 0x46},
	}

	r := New(clock(2000))
	if err := r.LoadFromFiles(fm); err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := r.SerializeToFiles()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if got, ok := out[attachPath]; !ok || string(got) != string(fm[attachPath]) {
		t.Fatalf("expected attachment carried through save, got %v", out[attachPath])
	}
}

func TestDeleteCredentialDropsItsAttachments(t *testing.T) {
	rec := credential.NewCredentialRecord("x", "login", 1000)
	recBytes, err := codec.EncodeCredential(rec)
	if err != nil {
		t.Fatalf("encode credential: %v", err)
	}
	meta := credential.NewRepositoryMetadata(1000)
	meta.CredentialCount = 1
	metaBytes, err := codec.EncodeMetadata(&meta)
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	attachPath := "attachments/" + rec.ID + "/scan.pdf"
	fm := credential.FileMap{
		credential.MetadataFile:       metaBytes,
		credential.RecordPath(rec.ID): recBytes,
		attachPath:                    []byte("blob"),
	}

	r := New(clock(2000))
	if err := r.LoadFromFiles(fm); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := r.DeleteCredential(rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, err := r.SerializeToFiles()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if _, ok := out[attachPath]; ok {
		t.Fatalf("expected deleted credential's attachment dropped from serialization")
	}
}

func TestLoadFromFilesRejectsMissingMetadata(t *testing.T) {
	r := New(clock(1000))
	if err := r.LoadFromFiles(credential.FileMap{}); err == nil {
		t.Fatalf("expected missing metadata error")
	}
}
