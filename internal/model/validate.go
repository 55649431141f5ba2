package model

import (
	"fmt"

	pokserrors "github.com/poks-pm/poks/internal/errors"
)

const defaultSchemaVersion = "1.0.0"

// knownSchemaVersions lists schema_version values this build understands.
// An unrecognized-but-parseable value is accepted with a caller-supplied
// warning rather than rejected, matching the forward-compat stance the
// manifest format takes on unknown fields.
var knownSchemaVersions = map[string]bool{
	"1.0.0": true,
}

// ValidateManifest checks the structural invariants §3 and §8 place on
// a Manifest: non-empty versions, unique version strings, non-empty
// archives per version, and no duplicate (os, arch) pair within a
// version. warn is called (if non-nil) for recoverable conditions such
// as an unrecognized schema_version.
func ValidateManifest(m *Manifest, warn func(msg string)) error {
	if m.SchemaVersion == "" {
		m.SchemaVersion = defaultSchemaVersion
	} else if !knownSchemaVersions[m.SchemaVersion] && warn != nil {
		warn(fmt.Sprintf("manifest schema_version %q is not recognized by this build, proceeding anyway", m.SchemaVersion))
	}

	if len(m.Versions) == 0 {
		return pokserrors.New(pokserrors.CategoryManifest, pokserrors.CodeManifestInvalid, "manifest has no versions")
	}

	seenVersions := make(map[string]bool, len(m.Versions))
	for i := range m.Versions {
		v := &m.Versions[i]
		if seenVersions[v.Version] {
			return pokserrors.New(pokserrors.CategoryManifest, pokserrors.CodeManifestInvalid,
				fmt.Sprintf("duplicate version %q in manifest", v.Version))
		}
		seenVersions[v.Version] = true

		if err := validateVersion(v); err != nil {
			return err
		}
	}

	return nil
}

func validateVersion(v *AppVersion) error {
	if len(v.Archives) == 0 {
		return pokserrors.New(pokserrors.CategoryManifest, pokserrors.CodeManifestInvalid,
			fmt.Sprintf("version %q has no archives", v.Version)).
			WithDetail("version", v.Version)
	}

	seenPairs := make(map[[2]string]bool, len(v.Archives))
	for _, a := range v.Archives {
		pair := [2]string{a.OS, a.Arch}
		if seenPairs[pair] {
			return pokserrors.New(pokserrors.CategoryManifest, pokserrors.CodeManifestInvalid,
				fmt.Sprintf("version %q declares archive (%s,%s) more than once", v.Version, a.OS, a.Arch)).
				WithDetail("version", v.Version)
		}
		seenPairs[pair] = true

		if a.Ext == "" && a.URL == "" && v.URL == "" {
			return pokserrors.New(pokserrors.CategoryManifest, pokserrors.CodeManifestInvalid,
				fmt.Sprintf("version %q archive (%s,%s) has no ext and no url to derive one from", v.Version, a.OS, a.Arch)).
				WithDetail("version", v.Version)
		}
	}

	return nil
}

// ValidateConfig checks the invariants §3 places on a Config: unique
// bucket names, and every selector's bucket (when set) resolves to a
// declared bucket.
func ValidateConfig(c *Config) error {
	bucketNames := make(map[string]bool, len(c.Buckets))
	for _, b := range c.Buckets {
		if bucketNames[b.Name] {
			return pokserrors.New(pokserrors.CategoryConfig, pokserrors.CodeConfigInvalid,
				fmt.Sprintf("duplicate bucket name %q", b.Name))
		}
		bucketNames[b.Name] = true
	}

	for _, a := range c.Apps {
		if a.Bucket != "" && !bucketNames[a.Bucket] {
			return pokserrors.New(pokserrors.CategoryConfig, pokserrors.CodeConfigInvalid,
				fmt.Sprintf("app %q references undeclared bucket %q", a.Name, a.Bucket))
		}
	}

	return nil
}
