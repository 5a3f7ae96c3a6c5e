package secutil

import "testing"

func TestScorePasswordThresholdTable(t *testing.T) {
	// Exercise each cell of the length/coverage table directly.
	if got := ScorePassword("abc1234"); got != VeryWeak { // length 7
		t.Errorf("len7: got %v", got)
	}
	if got := ScorePassword("abcdefgh"); got != Weak { // length 8, 1 class (lower)
		t.Errorf("len8 1class: got %v", got)
	}
	if got := ScorePassword("abcdefg1"); got != Fair { // length 8, 2 classes
		t.Errorf("len8 2class: got %v", got)
	}
	if got := ScorePassword("Abcdefg1!"); got != Good { // length 9, 4 classes
		t.Errorf("len9 4class: got %v", got)
	}
	if got := ScorePassword("abcdefghijkl"); got != Weak { // length 12, 1 class
		t.Errorf("len12 1class: got %v", got)
	}
	if got := ScorePassword("abcdefghijk1"); got != Fair { // length 12, 2 classes
		t.Errorf("len12 2class: got %v", got)
	}
	if got := ScorePassword("Abcdefghijk1"); got != Good { // length 12, 3 classes
		t.Errorf("len12 3class: got %v", got)
	}
	if got := ScorePassword("Abcdefghijk1!"); got != Strong { // length 13, 4 classes
		t.Errorf("len13 4class: got %v", got)
	}
}

func TestGeneratePasswordRespectsLength(t *testing.T) {
	pw, err := GeneratePassword(DefaultGenerateOptions())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(pw) != 20 {
		t.Fatalf("expected length 20, got %d", len(pw))
	}
}

func TestGeneratePasswordExcludesAmbiguousCharacters(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.Length = 500
	pw, err := GeneratePassword(opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, r := range pw {
		if containsRune(ambiguousChars, r) {
			t.Fatalf("expected no ambiguous characters, found %q in %q", r, pw)
		}
	}
}

func TestGeneratePasswordRejectsNoCharacterClasses(t *testing.T) {
	opts := GenerateOptions{Length: 10}
	if _, err := GeneratePassword(opts); err == nil {
		t.Fatalf("expected error when no character classes selected")
	}
}

func TestGeneratePasswordProducesDistinctOutputs(t *testing.T) {
	a, _ := GeneratePassword(DefaultGenerateOptions())
	b, _ := GeneratePassword(DefaultGenerateOptions())
	if a == b {
		t.Fatalf("expected two generated passwords to differ (got identical: %q)", a)
	}
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}
