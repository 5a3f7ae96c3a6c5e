// Package validate implements structural/schema validation and optional
// repair over a loaded repository's file map: required files present and
// parseable, record ids matching their directories, the index consistent
// with the record set, no orphan attachments, and the structure version
// inside the supported semver range.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/vaultcore/vaultcore/src/codec"
	"github.com/vaultcore/vaultcore/src/credential"
	"github.com/vaultcore/vaultcore/src/vaulterr"
)

// Severity classifies a ValidationIssue.
type Severity string

const (
	Info     Severity = "info"
	Warning  Severity = "warning"
	Critical Severity = "critical"
)

// Issue codes, referenced by hosts that want to react to a specific
// condition rather than parse Message text.
const (
	CodeMissingMetadata     = "MissingMetadata"
	CodeUnparseableRecord   = "UnparseableRecord"
	CodeRecordIDMismatch    = "RecordIDMismatch"
	CodeDuplicateID         = "DuplicateID"
	CodeIndexOutOfSync      = "IndexOutOfSync"
	CodeOrphanAttachment    = "OrphanAttachment"
	CodeMissingAttachment   = "MissingAttachment"
	CodeUnsupportedVersion  = "UnsupportedVersion"
	CodeSchemaViolation     = "SchemaViolation"
	CodeLoginMissingFields  = "LoginMissingFields"
)

// ValidationIssue is one finding from Validate.
type ValidationIssue struct {
	Severity    Severity
	Code        string
	Path        string
	Message     string
	AutoFixable bool
}

// Report is the full set of findings from one Validate call.
type Report struct {
	Issues []ValidationIssue
}

// HasCritical reports whether the report contains any Critical-severity
// issue; Repair refuses to run when this is true.
func (r Report) HasCritical() bool {
	for _, i := range r.Issues {
		if i.Severity == Critical {
			return true
		}
	}
	return false
}

// AutoFixable reports whether every issue in the report can be repaired
// automatically.
func (r Report) AutoFixable() bool {
	for _, i := range r.Issues {
		if !i.AutoFixable {
			return false
		}
	}
	return true
}

// supportedStructureVersions is the semver constraint applied to
// RepositoryMetadata.StructureVersion, a range check rather than exact
// string equality so point releases of the layout stay openable.
const supportedStructureVersions = "^1.0"

// fileMapSchema is the embedded JSON Schema describing the on-archive
// layout's shape once decoded from YAML to a generic JSON document.
const fileMapSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "metadata": {
      "type": "object",
      "required": ["version", "format", "structure_version", "credential_count"],
      "properties": {
        "version": {"type": "string"},
        "format": {"type": "string"},
        "structure_version": {"type": "string"},
        "credential_count": {"type": "integer", "minimum": 0}
      }
    },
    "index": {
      "type": "object",
      "required": ["credentials"],
      "properties": {
        "credentials": {"type": "array"}
      }
    }
  },
  "required": ["metadata"]
}`

// Validate checks fm structurally: metadata present and parseable, every
// credentials/*/record.yml parseable with a matching id, the index
// consistent with the record set, no duplicate ids, no orphan attachments,
// and the structure version within the supported range. Missing attachments
// are not checked; CodeMissingAttachment is never reported.
func Validate(fm credential.FileMap) (Report, error) {
	var report Report

	metaBytes, ok := fm[credential.MetadataFile]
	if !ok {
		report.Issues = append(report.Issues, ValidationIssue{
			Severity: Critical, Code: CodeMissingMetadata, Path: credential.MetadataFile,
			Message: "metadata.yml is missing", AutoFixable: false,
		})
		return report, nil
	}
	meta, err := codec.DecodeMetadata(metaBytes)
	if err != nil {
		report.Issues = append(report.Issues, ValidationIssue{
			Severity: Critical, Code: CodeMissingMetadata, Path: credential.MetadataFile,
			Message: err.Error(), AutoFixable: false,
		})
		return report, nil
	}

	if issue, ok := checkStructureVersion(meta.StructureVersion); !ok {
		report.Issues = append(report.Issues, issue)
	}

	records := make(map[string]*credential.CredentialRecord)
	prefix := credential.CredentialsDir + "/"
	for path, data := range fm {
		if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, "/record.yml") {
			continue
		}
		dirID := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/record.yml")
		rec, err := codec.DecodeCredential(data)
		if err != nil {
			report.Issues = append(report.Issues, ValidationIssue{
				Severity: Warning, Code: CodeUnparseableRecord, Path: path,
				Message: err.Error(), AutoFixable: false,
			})
			continue
		}
		if rec.ID != dirID {
			report.Issues = append(report.Issues, ValidationIssue{
				Severity: Critical, Code: CodeRecordIDMismatch, Path: path,
				Message: fmt.Sprintf("record id %s does not match directory %s", rec.ID, dirID),
				AutoFixable: false,
			})
			continue
		}
		if _, dup := records[rec.ID]; dup {
			report.Issues = append(report.Issues, ValidationIssue{
				Severity: Critical, Code: CodeDuplicateID, Path: path,
				Message: fmt.Sprintf("duplicate credential id %s", rec.ID), AutoFixable: false,
			})
			continue
		}
		records[rec.ID] = rec
	}

	checkIndexConsistency(fm, records, &report)
	checkAttachments(fm, records, &report)
	checkSchemaShape(fm, &report)
	checkLoginCompleteness(records, &report)

	if len(records) != meta.CredentialCount {
		report.Issues = append(report.Issues, ValidationIssue{
			Severity: Warning, Code: CodeIndexOutOfSync, Path: credential.MetadataFile,
			Message: fmt.Sprintf("metadata credential_count=%d but %d records found", meta.CredentialCount, len(records)),
			AutoFixable: true,
		})
	}

	return report, nil
}

func checkStructureVersion(version string) (ValidationIssue, bool) {
	constraint, err := semver.NewConstraint(supportedStructureVersions)
	if err != nil {
		return ValidationIssue{}, true // constraint string is a program bug, not a data issue
	}
	v, err := semver.NewVersion(normalizeSemver(version))
	if err != nil {
		return ValidationIssue{
			Severity: Critical, Code: CodeUnsupportedVersion, Path: credential.MetadataFile,
			Message: fmt.Sprintf("structure_version %q is not a valid version", version), AutoFixable: false,
		}, false
	}
	if !constraint.Check(v) {
		return ValidationIssue{
			Severity: Critical, Code: CodeUnsupportedVersion, Path: credential.MetadataFile,
			Message: fmt.Sprintf("structure_version %s is outside supported range %s", version, supportedStructureVersions),
			AutoFixable: false,
		}, false
	}
	return ValidationIssue{}, true
}

// normalizeSemver pads a bare "1.0"-style structure version to a full
// semver triple.
func normalizeSemver(v string) string {
	parts := strings.Split(v, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return strings.Join(parts[:3], ".")
}

type indexDoc struct {
	Credentials []struct {
		ID string `yaml:"id"`
	} `yaml:"credentials"`
}

func checkIndexConsistency(fm credential.FileMap, records map[string]*credential.CredentialRecord, report *Report) {
	idxBytes, ok := fm[credential.CredentialsIndexFile]
	if !ok {
		report.Issues = append(report.Issues, ValidationIssue{
			Severity: Warning, Code: CodeIndexOutOfSync, Path: credential.CredentialsIndexFile,
			Message: "credentials index is missing", AutoFixable: true,
		})
		return
	}
	var idx indexDoc
	if err := yaml.Unmarshal(idxBytes, &idx); err != nil {
		report.Issues = append(report.Issues, ValidationIssue{
			Severity: Warning, Code: CodeIndexOutOfSync, Path: credential.CredentialsIndexFile,
			Message: "credentials index does not parse: " + err.Error(), AutoFixable: true,
		})
		return
	}
	indexed := make(map[string]struct{}, len(idx.Credentials))
	for _, e := range idx.Credentials {
		indexed[e.ID] = struct{}{}
	}
	for id := range records {
		if _, ok := indexed[id]; !ok {
			report.Issues = append(report.Issues, ValidationIssue{
				Severity: Warning, Code: CodeIndexOutOfSync, Path: credential.CredentialsIndexFile,
				Message: fmt.Sprintf("credential %s missing from index", id), AutoFixable: true,
			})
		}
	}
	for id := range indexed {
		if _, ok := records[id]; !ok {
			report.Issues = append(report.Issues, ValidationIssue{
				Severity: Warning, Code: CodeIndexOutOfSync, Path: credential.CredentialsIndexFile,
				Message: fmt.Sprintf("index references missing credential %s", id), AutoFixable: true,
			})
		}
	}
}

// checkLoginCompleteness flags "login"-typed records missing a recommended
// username/email or password field. The rule is advisory, so every finding
// is a Warning, never AutoFixable; there is no safe value to fill in on
// the caller's behalf.
func checkLoginCompleteness(records map[string]*credential.CredentialRecord, report *Report) {
	for id, rec := range records {
		missing := rec.MissingLoginFields()
		if len(missing) == 0 {
			continue
		}
		report.Issues = append(report.Issues, ValidationIssue{
			Severity: Warning, Code: CodeLoginMissingFields, Path: credential.RecordPath(id),
			Message:     fmt.Sprintf("login credential missing recommended %s", strings.Join(missing, " and ")),
			AutoFixable: false,
		})
	}
}

func checkAttachments(fm credential.FileMap, records map[string]*credential.CredentialRecord, report *Report) {
	prefix := credential.AttachmentsDir + "/"
	for path := range fm {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		segs := strings.SplitN(rest, "/", 2)
		if len(segs) != 2 {
			continue
		}
		if _, ok := records[segs[0]]; !ok {
			report.Issues = append(report.Issues, ValidationIssue{
				Severity: Warning, Code: CodeOrphanAttachment, Path: path,
				Message: fmt.Sprintf("attachment references nonexistent credential %s", segs[0]),
				AutoFixable: true,
			})
		}
	}
}

// checkSchemaShape decodes metadata.yml and credentials/index.yml to a
// generic JSON document and validates it against fileMapSchema, the
// cross-field/document-shape check that per-record parsing can't cover.
func checkSchemaShape(fm credential.FileMap, report *Report) {
	doc := make(map[string]any)
	if raw, ok := fm[credential.MetadataFile]; ok {
		var m any
		if err := yaml.Unmarshal(raw, &m); err == nil {
			doc["metadata"] = m
		}
	}
	if raw, ok := fm[credential.CredentialsIndexFile]; ok {
		var idx any
		if err := yaml.Unmarshal(raw, &idx); err == nil {
			doc["index"] = idx
		}
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return
	}

	schemaLoader := gojsonschema.NewStringLoader(fileMapSchema)
	docLoader := gojsonschema.NewBytesLoader(docJSON)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		report.Issues = append(report.Issues, ValidationIssue{
			Severity: Warning, Code: CodeSchemaViolation, Path: credential.MetadataFile,
			Message: "schema validation error: " + err.Error(), AutoFixable: false,
		})
		return
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			report.Issues = append(report.Issues, ValidationIssue{
				Severity: Warning, Code: CodeSchemaViolation, Path: credential.MetadataFile,
				Message: desc.String(), AutoFixable: false,
			})
		}
	}
}

// Repair regenerates the index, refreshes credential_count, and drops
// orphan attachments, re-serializing fm. It refuses to run if report
// contains any Critical issue.
func Repair(fm credential.FileMap, report Report) (credential.FileMap, error) {
	if report.HasCritical() {
		return nil, vaulterr.NewCoreError(vaulterr.CoreValidationError, "cannot repair: report contains critical issues")
	}

	out := make(credential.FileMap, len(fm))
	for k, v := range fm {
		out[k] = v
	}

	records := make(map[string]*credential.CredentialRecord)
	prefix := credential.CredentialsDir + "/"
	for path, data := range fm {
		if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, "/record.yml") {
			continue
		}
		dirID := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/record.yml")
		rec, err := codec.DecodeCredential(data)
		if err != nil {
			continue // unparseable records were already reported; repair skips, never fabricates
		}
		if rec.ID == dirID {
			records[rec.ID] = rec
		}
	}

	idxBytes, err := codec.EncodeIndex(records)
	if err != nil {
		return nil, err
	}
	out[credential.CredentialsIndexFile] = idxBytes

	if metaBytes, ok := out[credential.MetadataFile]; ok {
		meta, err := codec.DecodeMetadata(metaBytes)
		if err == nil {
			meta.CredentialCount = len(records)
			if refreshed, err := codec.EncodeMetadata(meta); err == nil {
				out[credential.MetadataFile] = refreshed
			}
		}
	}

	attachPrefix := credential.AttachmentsDir + "/"
	for path := range fm {
		if !strings.HasPrefix(path, attachPrefix) {
			continue
		}
		rest := strings.TrimPrefix(path, attachPrefix)
		segs := strings.SplitN(rest, "/", 2)
		if len(segs) == 2 {
			if _, ok := records[segs[0]]; !ok {
				delete(out, path)
			}
		}
	}

	return out, nil
}
