// Package rootpath resolves the poks root directory layout:
// apps/<name>/<version>/, buckets/<name>/, cache/, per §3 and §6.6.
package rootpath

import (
	"os"
	"path/filepath"
)

const (
	defaultRootSuffix = ".local/share/poks"
	appsDir           = "apps"
	bucketsDir        = "buckets"
	cacheDir          = "cache"
	manifestFileName  = ".manifest.json"
)

// EnvRoot and EnvCacheDir are the environment variables that override
// the default root and cache directories, per §6.6.
const (
	EnvRoot     = "POKS_ROOT"
	EnvCacheDir = "POKS_CACHE_DIR"
)

// Root holds the resolved directory layout for a poks installation.
type Root struct {
	root  string
	cache string
}

// New resolves a Root from POKS_ROOT/POKS_CACHE_DIR, falling back to
// ~/.local/share/poks and <root>/cache respectively.
func New() (*Root, error) {
	root := os.Getenv(EnvRoot)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		root = filepath.Join(home, defaultRootSuffix)
	}

	cache := os.Getenv(EnvCacheDir)
	if cache == "" {
		cache = filepath.Join(root, cacheDir)
	}

	return &Root{root: root, cache: cache}, nil
}

// NewAt returns a Root rooted explicitly at root, ignoring environment
// overrides; used by tests.
func NewAt(root string) *Root {
	return &Root{root: root, cache: filepath.Join(root, cacheDir)}
}

// Dir returns the root directory itself.
func (r *Root) Dir() string { return r.root }

// CacheDir returns the content-addressed download cache directory.
func (r *Root) CacheDir() string { return r.cache }

// BucketsDir returns the directory all bucket checkouts live under.
func (r *Root) BucketsDir() string { return filepath.Join(r.root, bucketsDir) }

// BucketDir returns the checkout directory for a single named bucket.
func (r *Root) BucketDir(name string) string { return filepath.Join(r.BucketsDir(), name) }

// AppsDir returns the directory all installed apps live under.
func (r *Root) AppsDir() string { return filepath.Join(r.root, appsDir) }

// AppDir returns the directory holding every installed version of name.
func (r *Root) AppDir(name string) string { return filepath.Join(r.AppsDir(), name) }

// AppVersionDir returns the install directory for one app version.
func (r *Root) AppVersionDir(name, version string) string {
	return filepath.Join(r.AppDir(name), version)
}

// ManifestPath returns the path to the persisted provenance manifest
// inside an app version's install directory.
func (r *Root) ManifestPath(name, version string) string {
	return filepath.Join(r.AppVersionDir(name, version), manifestFileName)
}

// IsInstalled reports whether an app version's install directory
// exists and has a persisted manifest, the idempotency check used by
// the installer orchestrator (§4.8).
func (r *Root) IsInstalled(name, version string) bool {
	_, err := os.Stat(r.ManifestPath(name, version))
	return err == nil
}
