package vaulterr

import (
	"errors"
	"testing"
)

func TestFileErrorIs(t *testing.T) {
	err := NewFileError(FileInvalidPassword, "/tmp/x.7z", nil)
	if !errors.Is(err, &FileError{Reason: FileInvalidPassword}) {
		t.Fatalf("expected errors.Is to match on reason")
	}
	if errors.Is(err, &FileError{Reason: FileNotFound}) {
		t.Fatalf("did not expect match on different reason")
	}
}

func TestLift(t *testing.T) {
	fe := NewFileError(FileCorruptedArchive, "/tmp/x.7z", nil)
	ce := Lift(fe)
	if ce.Reason != CoreFileOperation {
		t.Fatalf("expected CoreFileOperation, got %s", ce.Reason)
	}
	var target *FileError
	if !errors.As(ce, &target) {
		t.Fatalf("expected errors.As to unwrap to *FileError")
	}
	if target.Reason != FileCorruptedArchive {
		t.Fatalf("unexpected unwrapped reason %s", target.Reason)
	}
}

func TestRetryable(t *testing.T) {
	cases := map[FileReason]bool{
		FileIoError:         true,
		FileLockTimeout:     true,
		FilePermissionDenied: true,
		FileInvalidPassword: false,
		FileCorruptedArchive: false,
	}
	for reason, want := range cases {
		e := &FileError{Reason: reason}
		if got := e.Retryable(); got != want {
			t.Errorf("%s: Retryable() = %v, want %v", reason, got, want)
		}
	}
}

func TestLiftErrWrapsUnknownErrorAsInternal(t *testing.T) {
	ce := LiftErr(errors.New("boom"))
	if ce.Reason != CoreInternalError {
		t.Fatalf("expected CoreInternalError, got %s", ce.Reason)
	}
}

func TestLiftErrKeepsCoreErrorReason(t *testing.T) {
	orig := NewCoreError(CoreStructureError, "bad record")
	ce := LiftErr(orig)
	if ce.Reason != CoreStructureError {
		t.Fatalf("expected CoreStructureError preserved, got %s", ce.Reason)
	}
}
