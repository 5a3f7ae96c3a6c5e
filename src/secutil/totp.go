// Package secutil implements the password-strength classifier, secure
// password generator, and RFC 6238 TOTP primitives: HMAC-SHA1 with dynamic
// truncation over a base32 shared secret, and a crypto/rand-backed
// generator that never seeds from time.
package secutil

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/vaultcore/vaultcore/src/vaulterr"
)

const (
	DefaultTOTPDigits = 6
	DefaultTOTPPeriod = 30

	// minSecretBits is the minimum entropy required of a TOTP secret;
	// anything shorter is rejected.
	minSecretBits = 80
)

// TOTPConfig parameterizes code generation/verification; Secret is the
// base32-encoded (RFC 4648, padding optional) shared secret.
type TOTPConfig struct {
	Secret string
	Digits int
	Period int
}

// DefaultTOTPConfig returns a config with RFC 6238's common default digits/period
// and no secret set.
func DefaultTOTPConfig() TOTPConfig {
	return TOTPConfig{Digits: DefaultTOTPDigits, Period: DefaultTOTPPeriod}
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimRight(secret, "="))
	if missing := len(s) % 8; missing != 0 {
		s += strings.Repeat("=", 8-missing)
	}
	decoded, err := base32.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, vaulterr.NewCoreError(vaulterr.CoreValidationError, "invalid base32 TOTP secret: %s", err)
	}
	if len(decoded)*8 < minSecretBits {
		return nil, vaulterr.NewCoreError(vaulterr.CoreValidationError, "TOTP secret shorter than %d bits", minSecretBits)
	}
	return decoded, nil
}

// GenerateTOTP returns the zero-padded decimal code for cfg.Secret at time
// t.
func GenerateTOTP(cfg TOTPConfig, t time.Time) (string, error) {
	digits := cfg.Digits
	if digits <= 0 {
		digits = DefaultTOTPDigits
	}
	period := cfg.Period
	if period <= 0 {
		period = DefaultTOTPPeriod
	}
	secretBytes, err := decodeSecret(cfg.Secret)
	if err != nil {
		return "", err
	}
	counter := uint64(t.Unix() / int64(period))
	return hotp(secretBytes, counter, digits), nil
}

// VerifyTOTP checks code against cfg.Secret at time t, allowing codes from
// window periods before/after t to absorb clock drift.
func VerifyTOTP(cfg TOTPConfig, code string, t time.Time, window int) (bool, error) {
	period := cfg.Period
	if period <= 0 {
		period = DefaultTOTPPeriod
	}
	secretBytes, err := decodeSecret(cfg.Secret)
	if err != nil {
		return false, err
	}
	digits := cfg.Digits
	if digits <= 0 {
		digits = DefaultTOTPDigits
	}
	counter := int64(t.Unix() / int64(period))
	for i := -window; i <= window; i++ {
		if hotp(secretBytes, uint64(counter+int64(i)), digits) == code {
			return true, nil
		}
	}
	return false, nil
}

// hotp implements RFC 4226 HOTP with dynamic truncation, the core of RFC
// 6238 TOTP once the counter is derived from wall-clock time.
func hotp(secret []byte, counter uint64, digits int) string {
	counterBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(counterBytes, counter)

	h := hmac.New(sha1.New, secret)
	h.Write(counterBytes)
	hash := h.Sum(nil)

	offset := hash[len(hash)-1] & 0x0F
	truncated := ((int(hash[offset]) & 0x7F) << 24) |
		((int(hash[offset+1]) & 0xFF) << 16) |
		((int(hash[offset+2]) & 0xFF) << 8) |
		(int(hash[offset+3]) & 0xFF)

	code := truncated % pow10(digits)
	return fmt.Sprintf("%0*d", digits, code)
}

func pow10(n int) int {
	result := 1
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}

// FormatTOTPSecret re-encodes raw secret bytes as an unpadded base32 string
// suitable for display/QR-code embedding.
func FormatTOTPSecret(raw []byte) string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(raw), "=")
}
