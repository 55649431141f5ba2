package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateManifest_EmptyVersionsRejected(t *testing.T) {
	m := &Manifest{Description: "empty tool"}
	err := ValidateManifest(m, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no versions")
}

func TestValidateManifest_DuplicateVersionRejected(t *testing.T) {
	m := &Manifest{
		Versions: []AppVersion{
			{Version: "1.0.0", Archives: []Archive{{OS: "linux", Arch: "x86_64", SHA256: "a", Ext: ".tar.gz"}}},
			{Version: "1.0.0", Archives: []Archive{{OS: "macos", Arch: "aarch64", SHA256: "b", Ext: ".tar.gz"}}},
		},
	}
	err := ValidateManifest(m, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate version "1.0.0"`)
}

func TestValidateManifest_DuplicateOSArchPairRejected(t *testing.T) {
	m := &Manifest{
		Versions: []AppVersion{
			{
				Version: "1.0.0",
				Archives: []Archive{
					{OS: "linux", Arch: "x86_64", SHA256: "a", Ext: ".tar.gz"},
					{OS: "linux", Arch: "x86_64", SHA256: "b", Ext: ".tar.gz"},
				},
			},
		},
	}
	err := ValidateManifest(m, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")
}

func TestValidateManifest_MissingExtWithNoURLRejected(t *testing.T) {
	m := &Manifest{
		Versions: []AppVersion{
			{
				Version:  "1.0.0",
				Archives: []Archive{{OS: "linux", Arch: "x86_64", SHA256: "a"}},
			},
		},
	}
	err := ValidateManifest(m, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ext and no url")
}

func TestValidateManifest_MissingExtOKWhenArchiveURLSet(t *testing.T) {
	m := &Manifest{
		Versions: []AppVersion{
			{
				Version: "1.0.0",
				Archives: []Archive{
					{OS: "linux", Arch: "x86_64", SHA256: "a", URL: "https://example.com/tool-1.0.0.tar.gz"},
				},
			},
		},
	}
	assert.NoError(t, ValidateManifest(m, nil))
}

func TestValidateManifest_MissingExtOKWhenVersionURLSet(t *testing.T) {
	m := &Manifest{
		Versions: []AppVersion{
			{
				Version:  "1.0.0",
				URL:      "https://example.com/tool-${version}-${os}-${arch}",
				Archives: []Archive{{OS: "linux", Arch: "x86_64", SHA256: "a"}},
			},
		},
	}
	assert.NoError(t, ValidateManifest(m, nil))
}

func TestValidateManifest_VersionWithNoArchivesRejected(t *testing.T) {
	m := &Manifest{
		Versions: []AppVersion{{Version: "1.0.0"}},
	}
	err := ValidateManifest(m, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no archives")
}

func TestValidateManifest_DefaultsSchemaVersion(t *testing.T) {
	m := &Manifest{
		Versions: []AppVersion{
			{Version: "1.0.0", Archives: []Archive{{OS: "linux", Arch: "x86_64", SHA256: "a", Ext: ".tar.gz"}}},
		},
	}
	require.NoError(t, ValidateManifest(m, nil))
	assert.Equal(t, defaultSchemaVersion, m.SchemaVersion)
}

func TestValidateManifest_UnknownSchemaVersionWarns(t *testing.T) {
	m := &Manifest{
		SchemaVersion: "99.0.0",
		Versions: []AppVersion{
			{Version: "1.0.0", Archives: []Archive{{OS: "linux", Arch: "x86_64", SHA256: "a", Ext: ".tar.gz"}}},
		},
	}

	var warnings []string
	err := ValidateManifest(m, func(msg string) { warnings = append(warnings, msg) })
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "99.0.0")
}

func TestValidateManifest_KnownSchemaVersionDoesNotWarn(t *testing.T) {
	m := &Manifest{
		SchemaVersion: "1.0.0",
		Versions: []AppVersion{
			{Version: "1.0.0", Archives: []Archive{{OS: "linux", Arch: "x86_64", SHA256: "a", Ext: ".tar.gz"}}},
		},
	}

	warned := false
	require.NoError(t, ValidateManifest(m, func(string) { warned = true }))
	assert.False(t, warned)
}

func TestValidateConfig_DuplicateBucketNameRejected(t *testing.T) {
	c := &Config{
		Buckets: []Bucket{{Name: "main", URL: "https://example.com/a.git"}, {Name: "main", URL: "https://example.com/b.git"}},
	}
	err := ValidateConfig(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate bucket name "main"`)
}

func TestValidateConfig_UndeclaredBucketReferenceRejected(t *testing.T) {
	c := &Config{
		Buckets: []Bucket{{Name: "main", URL: "https://example.com/a.git"}},
		Apps:    []AppSelector{{Name: "tool", Version: "1.0.0", Bucket: "other"}},
	}
	err := ValidateConfig(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undeclared bucket "other"`)
}

func TestValidateConfig_ValidConfigPasses(t *testing.T) {
	c := &Config{
		Buckets: []Bucket{{Name: "main", URL: "https://example.com/a.git"}},
		Apps:    []AppSelector{{Name: "tool", Version: "1.0.0", Bucket: "main"}},
	}
	assert.NoError(t, ValidateConfig(c))
}
