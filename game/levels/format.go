package levels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
)

// Extensions lists the level file extensions in lookup order
var Extensions = []string{".json", ".yaml", ".yml", ".txt"}

const levelSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "layout"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "max_depth": {"type": "integer", "minimum": 0, "maximum": 9},
    "layout": {
      "type": "array",
      "minItems": 1,
      "maxItems": 64,
      "items": {"type": "string", "minLength": 1, "maxLength": 64}
    }
  }
}`

var levelSchema = jsonschema.MustCompileString("level.schema.json", levelSchemaJSON)

// LoadFile reads and validates a single level file
func LoadFile(path string) (*engine.Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read level file: %w", err)
	}
	return Decode(data, path)
}

// Decode parses level data in the format implied by filename's extension
// and validates it.
func Decode(data []byte, filename string) (*engine.Level, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	var level engine.Level
	switch ext {
	case ".json":
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: failed to parse JSON: %v", ErrInvalidLevel, err)
		}
		if err := levelSchema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
		}
		if err := json.Unmarshal(data, &level); err != nil {
			return nil, fmt.Errorf("%w: failed to parse JSON: %v", ErrInvalidLevel, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&level); err != nil {
			return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidLevel, err)
		}
	case ".txt", "":
		level = engine.Level{
			Name:   stem,
			Layout: engine.SplitLayout(string(data)),
		}
	default:
		return nil, fmt.Errorf("%w: unsupported level format %q", ErrInvalidLevel, ext)
	}

	if err := engine.ValidateLevel(&level); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	return &level, nil
}

// IsLevelFile reports whether path has a level file extension
func IsLevelFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// trimExt strips a known level extension from name
func trimExt(name string) string {
	if IsLevelFile(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
