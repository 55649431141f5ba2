package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	pokserrors "github.com/poks-pm/poks/internal/errors"
)

// LoadConfig decodes poks.json from path. Unknown fields are rejected
// with a clear error, per §6.2.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pokserrors.Wrap(pokserrors.CategoryConfig, pokserrors.CodeConfigInvalid,
			fmt.Sprintf("failed to read config %s", path), err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a poks.json document from bytes, rejecting
// unknown fields.
func ParseConfig(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, pokserrors.Wrap(pokserrors.CategoryConfig, pokserrors.CodeConfigInvalid, "invalid config document", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadManifest decodes a manifest file from path. Unknown fields are
// accepted rather than rejected: the manifest struct ignores them on
// decode (Go's json package default), so they are not kept and
// SerializeManifest does not write them back.
func LoadManifest(path string, warn func(msg string)) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pokserrors.Wrap(pokserrors.CategoryManifest, pokserrors.CodeManifestNotFound,
			fmt.Sprintf("failed to read manifest %s", path), err)
	}
	return ParseManifest(data, warn)
}

// ParseManifest decodes a manifest document from bytes.
func ParseManifest(data []byte, warn func(msg string)) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, pokserrors.Wrap(pokserrors.CategoryManifest, pokserrors.CodeManifestInvalid, "invalid manifest document", err)
	}

	if err := ValidateManifest(&m, warn); err != nil {
		return nil, err
	}

	return &m, nil
}

// SerializeManifest serializes a manifest back to JSON, for
// persistence alongside an install as `.manifest.json` (§3 "Ownership
// & lifecycle").
func SerializeManifest(m *Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
