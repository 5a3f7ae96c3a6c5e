package cloudpath

import "testing"

func TestClassifyRecognizesProviders(t *testing.T) {
	cases := map[string]Provider{
		"/home/alice/Dropbox/vault.7z":                                  ProviderDropbox,
		"/home/alice/OneDrive/Documents/vault.7z":                       ProviderOneDrive,
		"/home/alice/Google Drive/vault.7z":                             ProviderGoogleDrive,
		"/Users/alice/Library/Mobile Documents/com~apple~CloudDocs/v.7z": ProviderICloud,
		"/home/alice/Nextcloud/vault.7z":                                ProviderNextcloud,
		"/home/alice/Documents/vault.7z":                                ProviderNone,
	}
	for path, want := range cases {
		if got := Classify(path); got != want {
			t.Errorf("Classify(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestIsCloudSynced(t *testing.T) {
	if !IsCloudSynced("/home/alice/Dropbox/vault.7z") {
		t.Fatalf("expected Dropbox path to be cloud synced")
	}
	if IsCloudSynced("/home/alice/Documents/vault.7z") {
		t.Fatalf("expected local path to not be cloud synced")
	}
}

func TestRetryHint(t *testing.T) {
	if RetryHint("/home/alice/Dropbox/vault.7z") == 0 {
		t.Fatalf("expected nonzero retry hint for cloud-synced path")
	}
	if RetryHint("/home/alice/Documents/vault.7z") != 0 {
		t.Fatalf("expected zero retry hint for local path")
	}
}
