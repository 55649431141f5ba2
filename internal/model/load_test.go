package model

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pokserrors "github.com/poks-pm/poks/internal/errors"
)

func TestParseConfig_RejectsUnknownFields(t *testing.T) {
	data := []byte(`{"buckets":[{"name":"main","url":"https://example.com/a.git"}],"apps":[],"bogus":true}`)
	_, err := ParseConfig(data)
	require.Error(t, err)

	var coded pokserrors.Coded
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, pokserrors.CodeConfigInvalid, coded.ErrorCode())
}

func TestParseConfig_ValidDocument(t *testing.T) {
	data := []byte(`{
		"buckets": [{"name": "main", "url": "https://example.com/a.git"}],
		"apps": [{"name": "ripgrep", "version": "14.1.0", "bucket": "main"}]
	}`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Buckets[0].Name)
	assert.Equal(t, "ripgrep", cfg.Apps[0].Name)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
}

func TestParseManifest_ToleratesUnknownFields(t *testing.T) {
	data := []byte(`{
		"description": "a tool",
		"versions": [{
			"version": "1.0.0",
			"archives": [{"os": "linux", "arch": "x86_64", "sha256": "abc", "ext": ".tar.gz"}]
		}],
		"future_field": "ignored by this build"
	}`)
	m, err := ParseManifest(data, nil)
	require.NoError(t, err)
	assert.Equal(t, "a tool", m.Description)
	assert.Len(t, m.Versions, 1)
}

func TestParseManifest_InvalidJSONRejected(t *testing.T) {
	_, err := ParseManifest([]byte(`not json`), nil)
	require.Error(t, err)

	var coded pokserrors.Coded
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, pokserrors.CodeManifestInvalid, coded.ErrorCode())
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)

	var coded pokserrors.Coded
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, pokserrors.CodeManifestNotFound, coded.ErrorCode())
}

// TestManifestRoundTrip checks the §8 law parse(serialize(manifest))
// == manifest for a manifest already carrying every field this
// package knows about.
func TestManifestRoundTrip(t *testing.T) {
	original := &Manifest{
		Description:   "a tool",
		SchemaVersion: "1.0.0",
		License:       "MIT",
		Homepage:      "https://example.com",
		Versions: []AppVersion{
			{
				Version:    "1.0.0",
				ExtractDir: "tool-1.0.0",
				Bin:        []string{"bin/tool"},
				Env:        map[string]string{"TOOL_HOME": "${install_dir}"},
				License:    "MIT",
				Archives: []Archive{
					{OS: "linux", Arch: "x86_64", SHA256: "abc123", Ext: ".tar.gz"},
					{OS: "macos", Arch: "aarch64", SHA256: "def456", URL: "https://example.com/tool-darwin.tar.gz"},
				},
			},
			{
				Version: "0.9.0",
				Yanked:  "contains a regression",
				Archives: []Archive{
					{OS: "linux", Arch: "x86_64", SHA256: "old123", Ext: ".tar.gz"},
				},
			},
		},
	}

	data, err := SerializeManifest(original)
	require.NoError(t, err)

	roundTripped, err := ParseManifest(data, nil)
	require.NoError(t, err)

	assert.True(t, reflect.DeepEqual(original, roundTripped))
}

func TestManifestRoundTrip_ViaFile(t *testing.T) {
	m := &Manifest{
		Versions: []AppVersion{
			{Version: "1.0.0", Archives: []Archive{{OS: "linux", Arch: "x86_64", SHA256: "abc", Ext: ".tar.gz"}}},
		},
	}

	data, err := SerializeManifest(m)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tool.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadManifest(path, nil)
	require.NoError(t, err)
	// Loading fills in the default for the absent schema_version.
	m.SchemaVersion = defaultSchemaVersion
	assert.True(t, reflect.DeepEqual(m, loaded))
}
