package credential

import (
	"strings"
)

// FieldType is the closed set of field variants. Custom fields carry their
// name after the "custom:" prefix.
type FieldType string

const (
	FieldText              FieldType = "text"
	FieldPassword          FieldType = "password"
	FieldEmail             FieldType = "email"
	FieldURL               FieldType = "url"
	FieldUsername          FieldType = "username"
	FieldPhone             FieldType = "phone"
	FieldCreditCardNumber  FieldType = "credit_card_number"
	FieldExpiryDate        FieldType = "expiry_date"
	FieldCVV               FieldType = "cvv"
	FieldTOTPSecret        FieldType = "totp_secret"
	FieldTextArea          FieldType = "text_area"
	FieldNumber            FieldType = "number"
	FieldDate              FieldType = "date"

	customPrefix = "custom:"
)

// CustomFieldType builds a Custom(name) field type.
func CustomFieldType(name string) FieldType {
	return FieldType(customPrefix + name)
}

// IsCustom reports whether this is a Custom(name) variant.
func (t FieldType) IsCustom() bool {
	return strings.HasPrefix(string(t), customPrefix)
}

// CustomName returns the name carried by a Custom(name) variant, or "" if
// this isn't one.
func (t FieldType) CustomName() string {
	if !t.IsCustom() {
		return ""
	}
	return strings.TrimPrefix(string(t), customPrefix)
}

// DisplayName renders a human-readable label for the field type, used by the
// search engine and by sanitized log output.
func (t FieldType) DisplayName() string {
	if t.IsCustom() {
		return t.CustomName()
	}
	switch t {
	case FieldText:
		return "Text"
	case FieldPassword:
		return "Password"
	case FieldEmail:
		return "Email"
	case FieldURL:
		return "URL"
	case FieldUsername:
		return "Username"
	case FieldPhone:
		return "Phone"
	case FieldCreditCardNumber:
		return "Credit Card Number"
	case FieldExpiryDate:
		return "Expiry Date"
	case FieldCVV:
		return "CVV"
	case FieldTOTPSecret:
		return "TOTP Secret"
	case FieldTextArea:
		return "Notes"
	case FieldNumber:
		return "Number"
	case FieldDate:
		return "Date"
	default:
		return string(t)
	}
}

// isSecretVariant reports whether values of this type must always be
// sensitive.
func (t FieldType) isSecretVariant() bool {
	switch t {
	case FieldPassword, FieldTOTPSecret, FieldCVV:
		return true
	default:
		return false
	}
}

// DefaultSensitive returns the rendering-hint default for whether a freshly
// created field of this type should be sensitive.
func (t FieldType) DefaultSensitive() bool {
	return t.isSecretVariant()
}

// CredentialField is one typed value within a credential. The validate tags
// cover the length/required constraints go-playground/validator can express
// directly; the sensitive-variant forcing invariant is not tag-expressible
// and stays in NewField/Normalize.
type CredentialField struct {
	FieldType FieldType         `yaml:"field_type" json:"field_type" validate:"required"`
	Value     string            `yaml:"value" json:"value" validate:"max=10000"`
	Sensitive bool              `yaml:"sensitive" json:"sensitive"`
	Label     string            `yaml:"label,omitempty" json:"label,omitempty" validate:"max=200"`
	Metadata  map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty" validate:"max=16"`
}

// NewField constructs a field, forcing Sensitive to true for secret variants
// regardless of the caller-supplied value.
func NewField(fieldType FieldType, value string, sensitive bool) CredentialField {
	if fieldType.isSecretVariant() {
		sensitive = true
	}
	return CredentialField{
		FieldType: fieldType,
		Value:     value,
		Sensitive: sensitive,
	}
}

// Normalize enforces the sensitive-variant invariant on an already
// constructed field; called by the repository before every insert/update so
// callers cannot bypass it by building the struct literal directly.
func (f *CredentialField) Normalize() {
	if f.FieldType.isSecretVariant() {
		f.Sensitive = true
	}
}

// SanitizeForLog returns a value safe to place in a log line or search
// index: the redacted placeholder for sensitive fields, the raw value
// (possibly truncated) otherwise.
func (f CredentialField) SanitizeForLog() string {
	if f.Sensitive {
		return "[" + f.FieldType.DisplayName() + "]"
	}
	if len(f.Value) > 50 {
		return f.Value[:47] + "..."
	}
	return f.Value
}
