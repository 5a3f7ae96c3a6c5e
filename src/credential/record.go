package credential

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var fieldNameRe = regexp.MustCompile(FieldNamePattern)

// structValidate is the shared go-playground/validator instance used for
// the struct-tag-expressible constraints below.
var structValidate = validator.New()

// CredentialRecord is one entry in the repository: a UUID v4 identity, a
// title, a closed credential-type tag, a set of named fields, a tag set,
// free-form notes, a favorite flag, an optional folder path, and the
// created/updated/accessed timestamp triple (Unix seconds). Tags carry the
// constraints go-playground/validator can check directly; the invariants it
// cannot express as field tags (sensitive-variant forcing,
// field-name-keyed-by-map-key regex, folder depth derived from a path
// string) are checked imperatively in Validate below.
type CredentialRecord struct {
	ID             string                     `yaml:"id" json:"id" validate:"required,uuid4"`
	Title          string                     `yaml:"title" json:"title" validate:"required,max=200"`
	CredentialType string                     `yaml:"credential_type" json:"credential_type" validate:"required"`
	Fields         map[string]CredentialField `yaml:"fields" json:"fields" validate:"max=50,dive"`
	Tags           []string                   `yaml:"tags,omitempty" json:"tags,omitempty" validate:"max=10,dive,max=50"`
	Notes          string                     `yaml:"notes,omitempty" json:"notes,omitempty" validate:"max=10000"`
	Favorite       bool                       `yaml:"favorite" json:"favorite"`
	FolderPath     string                     `yaml:"folder_path,omitempty" json:"folder_path,omitempty"`
	CreatedAt      int64                      `yaml:"created_at" json:"created_at"`
	UpdatedAt      int64                      `yaml:"updated_at" json:"updated_at"`
	AccessedAt     int64                      `yaml:"accessed_at" json:"accessed_at"`
}

// NewCredentialRecord builds a record with a fresh UUID v4 id and all three
// timestamps set to now, matching the fields the repository stamps on
// AddCredential.
func NewCredentialRecord(title, credentialType string, now int64) *CredentialRecord {
	return &CredentialRecord{
		ID:             uuid.NewString(),
		Title:          title,
		CredentialType: credentialType,
		Fields:         make(map[string]CredentialField),
		CreatedAt:      now,
		UpdatedAt:      now,
		AccessedAt:     now,
	}
}

// Validate enforces the record's structural invariants: title length and
// non-whitespace, field count/name/value limits, tag count/length limits,
// notes length, and folder depth. It does not touch timestamps;
// monotonicity is the repository's responsibility since it requires
// comparing against the previous revision.
func (r *CredentialRecord) Validate() error {
	if err := structValidate.Struct(r); err != nil {
		return fmt.Errorf("struct validation: %w", err)
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("id: not a valid UUID: %w", err)
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return fmt.Errorf("title: must not be blank")
	}
	if utf8.RuneCountInString(r.Title) > MaxTitleLength {
		return fmt.Errorf("title: exceeds %d characters", MaxTitleLength)
	}
	if len(r.Fields) > MaxFieldsPerCredential {
		return fmt.Errorf("fields: exceeds %d entries", MaxFieldsPerCredential)
	}
	for name, f := range r.Fields {
		if !fieldNameRe.MatchString(name) {
			return fmt.Errorf("fields[%s]: invalid field name", name)
		}
		if !utf8.ValidString(f.Value) {
			return fmt.Errorf("fields[%s]: value is not valid UTF-8", name)
		}
		if strings.ContainsRune(f.Value, 0) {
			return fmt.Errorf("fields[%s]: value contains a NUL byte", name)
		}
		if utf8.RuneCountInString(f.Value) > MaxFieldValueLength {
			return fmt.Errorf("fields[%s]: value exceeds %d characters", name, MaxFieldValueLength)
		}
		if len(f.Metadata) > MaxFieldMetadataEntries {
			return fmt.Errorf("fields[%s]: metadata exceeds %d entries", name, MaxFieldMetadataEntries)
		}
		if utf8.RuneCountInString(f.Label) > MaxFieldLabelLength {
			return fmt.Errorf("fields[%s]: label exceeds %d characters", name, MaxFieldLabelLength)
		}
	}
	if len(r.Tags) > MaxTagsPerCredential {
		return fmt.Errorf("tags: exceeds %d entries", MaxTagsPerCredential)
	}
	seenTags := make(map[string]struct{}, len(r.Tags))
	for _, tag := range r.Tags {
		if tag == "" || utf8.RuneCountInString(tag) > MaxTagLength {
			return fmt.Errorf("tags: %q invalid or exceeds %d characters", tag, MaxTagLength)
		}
		if _, dup := seenTags[tag]; dup {
			return fmt.Errorf("tags: duplicate tag %q", tag)
		}
		seenTags[tag] = struct{}{}
	}
	if utf8.RuneCountInString(r.Notes) > MaxNotesLength {
		return fmt.Errorf("notes: exceeds %d characters", MaxNotesLength)
	}
	if depth := strings.Count(strings.Trim(r.FolderPath, "/"), "/") + boolToInt(r.FolderPath != ""); depth > MaxFolderDepth {
		return fmt.Errorf("folder_path: exceeds depth %d", MaxFolderDepth)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NormalizeFields forces the sensitive flag on every secret-variant field,
// closing the loophole of constructing Fields via a map literal instead of
// NewField.
func (r *CredentialRecord) NormalizeFields() {
	for name, f := range r.Fields {
		f.Normalize()
		r.Fields[name] = f
	}
}

// MissingLoginFields reports which recommended fields a "login"-typed
// credential lacks: a username or email field, and a password field.
// Returns nil for any other credential_type or when both are present; this
// is advisory only, surfaced by callers as a non-fatal warning, never a
// Validate error.
func (r *CredentialRecord) MissingLoginFields() []string {
	if r.CredentialType != "login" {
		return nil
	}
	hasIdentity, hasPassword := false, false
	for name, f := range r.Fields {
		lname := strings.ToLower(name)
		if f.FieldType == FieldUsername || f.FieldType == FieldEmail || lname == "username" || lname == "email" {
			hasIdentity = true
		}
		if f.FieldType == FieldPassword || lname == "password" {
			hasPassword = true
		}
	}
	var missing []string
	if !hasIdentity {
		missing = append(missing, "username or email field")
	}
	if !hasPassword {
		missing = append(missing, "password field")
	}
	return missing
}

// SanitizeForLog returns a log-safe map of the record's id, title, type,
// fields, tags, favorite flag and folder path, with every sensitive field
// value replaced by its redacted placeholder; notes and timestamps are
// omitted. Sensitive values must never reach a log line.
func (r *CredentialRecord) SanitizeForLog() map[string]any {
	fields := make(map[string]any, len(r.Fields))
	for name, f := range r.Fields {
		fields[name] = f.SanitizeForLog()
	}
	return map[string]any{
		"id":              r.ID,
		"title":           r.Title,
		"credential_type": r.CredentialType,
		"fields":          fields,
		"tags":            r.Tags,
		"favorite":        r.Favorite,
		"folder_path":     r.FolderPath,
	}
}
