package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/duet/pkg/types"
)

// ErrImportEnvelope is wrapped when an import document has no tasks array.
var ErrImportEnvelope = errors.New("tasks array required")

// Only the envelope is checked here. Entry fields are validated one by one
// during the import so earlier entries can still be stored.
const importSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["tasks"],
	"properties": {
		"tasks": {
			"type": "array",
			"items": {"type": "object"}
		}
	}
}`

var importSchema = jsonschema.MustCompileString("duet-import.schema.json", importSchemaJSON)

// Import document formats.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatTOML     = "toml"
	FormatMarkdown = "markdown"
)

type importDocument struct {
	Tasks []ImportEntry `json:"tasks"`
}

// ValidateImportDocument checks a decoded JSON value against the import
// envelope schema. Failures are ValidationErrors wrapping
// ErrImportEnvelope.
func ValidateImportDocument(doc any) error {
	err := importSchema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validating import document: %w", err)
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := "tasks"
	if leaf.InstanceLocation != "" && leaf.InstanceLocation != "/tasks" {
		field = strings.TrimPrefix(leaf.InstanceLocation, "/")
	}
	return &types.ValidationError{Field: field, Err: ErrImportEnvelope}
}

// DecodeImportJSON validates and decodes a JSON import body.
func DecodeImportJSON(data []byte) ([]ImportEntry, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, &types.ValidationError{Field: "tasks", Err: ErrImportEnvelope}
	}
	return decodeDocument(doc)
}

// DecodeImport decodes an import document in the given format. JSON and
// YAML documents may also be a bare array of entries.
func DecodeImport(data []byte, format string) ([]ImportEntry, error) {
	switch format {
	case FormatMarkdown:
		return ParseMarkdown(bytes.NewReader(data))
	case FormatJSON:
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
		return decodeDocument(wrapArray(doc))
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
		return decodeDocument(wrapArray(doc))
	case FormatTOML:
		var doc map[string]any
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
		return decodeDocument(doc)
	default:
		return nil, fmt.Errorf("unknown import format %q", format)
	}
}

// LoadImportFile reads an import file, choosing the format from its
// extension: .json, .yaml/.yml, .toml, or .md/.markdown.
func LoadImportFile(path string) ([]ImportEntry, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	entries, err := DecodeImport(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// FormatFromPath maps a file extension to an import format.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported import file %q", filepath.Base(path))
	}
}

func wrapArray(doc any) any {
	if arr, ok := doc.([]any); ok {
		return map[string]any{"tasks": arr}
	}
	return doc
}

// decodeDocument normalizes doc through JSON so values from any decoder
// have JSON types, validates the envelope, then decodes the entries.
func decodeDocument(doc any) ([]ImportEntry, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalizing import document: %w", err)
	}
	var normalized any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&normalized); err != nil {
		return nil, fmt.Errorf("normalizing import document: %w", err)
	}
	if err := ValidateImportDocument(normalized); err != nil {
		return nil, err
	}

	var out importDocument
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &types.ValidationError{Field: "tasks", Err: fmt.Errorf("%w: %v", ErrImportEnvelope, err)}
	}
	if out.Tasks == nil {
		out.Tasks = []ImportEntry{}
	}
	return out.Tasks, nil
}
