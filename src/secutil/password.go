package secutil

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// Strength is the five-level password-strength classification.
type Strength int

const (
	VeryWeak Strength = iota
	Weak
	Fair
	Good
	Strong
)

func (s Strength) String() string {
	switch s {
	case VeryWeak:
		return "Very Weak"
	case Weak:
		return "Weak"
	case Fair:
		return "Fair"
	case Good:
		return "Good"
	case Strong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// criteriaMet counts how many of the four character classes (lowercase,
// uppercase, digit, symbol) appear at least once in s.
func criteriaMet(s string) int {
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	n := 0
	for _, b := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if b {
			n++
		}
	}
	return n
}

// ScorePassword classifies s by length and character-class coverage:
//
//	length 0-7:  VeryWeak regardless of coverage
//	length 8-11: Weak (0-1 classes), Fair (2-3), Good (4)
//	length 12+:  Weak (0-1 classes), Fair (2), Good (3), Strong (4)
func ScorePassword(s string) Strength {
	length := len(s)
	criteria := criteriaMet(s)

	switch {
	case length <= 7:
		return VeryWeak
	case length <= 11:
		switch {
		case criteria <= 1:
			return Weak
		case criteria <= 3:
			return Fair
		default:
			return Good
		}
	default: // length >= 12
		switch criteria {
		case 0, 1:
			return Weak
		case 2:
			return Fair
		case 3:
			return Good
		case 4:
			return Strong
		default:
			return VeryWeak
		}
	}
}

const (
	lowerAlphabet  = "abcdefghijklmnopqrstuvwxyz"
	upperAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitAlphabet  = "0123456789"
	symbolAlphabet = "!@#$%^&*()-_=+[]{}<>?"

	ambiguousChars = "il1Lo0O"
)

// GenerateOptions controls GeneratePassword's character set and length.
type GenerateOptions struct {
	Length            int
	IncludeLower      bool
	IncludeUpper      bool
	IncludeDigits     bool
	IncludeSymbols    bool
	ExcludeAmbiguous  bool
}

// DefaultGenerateOptions returns a 20-character password drawing from all
// four character classes, excluding visually ambiguous characters.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Length:           20,
		IncludeLower:     true,
		IncludeUpper:     true,
		IncludeDigits:    true,
		IncludeSymbols:   true,
		ExcludeAmbiguous: true,
	}
}

// GeneratePassword draws Length characters from the requested classes using
// crypto/rand, never a time-seeded PRNG.
func GeneratePassword(opts GenerateOptions) (string, error) {
	if opts.Length <= 0 {
		return "", vaulterr.NewCoreError(vaulterr.CoreValidationError, "password length must be positive")
	}
	var alphabet strings.Builder
	if opts.IncludeLower {
		alphabet.WriteString(lowerAlphabet)
	}
	if opts.IncludeUpper {
		alphabet.WriteString(upperAlphabet)
	}
	if opts.IncludeDigits {
		alphabet.WriteString(digitAlphabet)
	}
	if opts.IncludeSymbols {
		alphabet.WriteString(symbolAlphabet)
	}
	pool := alphabet.String()
	if opts.ExcludeAmbiguous {
		pool = stripChars(pool, ambiguousChars)
	}
	if pool == "" {
		return "", vaulterr.NewCoreError(vaulterr.CoreValidationError, "no character classes selected")
	}

	out := make([]byte, opts.Length)
	poolSize := big.NewInt(int64(len(pool)))
	for i := range out {
		n, err := rand.Int(rand.Reader, poolSize)
		if err != nil {
			return "", vaulterr.NewCoreError(vaulterr.CoreInternalError, "random generation failed: %s", err)
		}
		out[i] = pool[n.Int64()]
	}
	return string(out), nil
}

func stripChars(s, cut string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(cut, r) {
			return -1
		}
		return r
	}, s)
}
