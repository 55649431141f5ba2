package installer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poks-pm/poks/internal/bucket"
	"github.com/poks-pm/poks/internal/download"
	pokserrors "github.com/poks-pm/poks/internal/errors"
	"github.com/poks-pm/poks/internal/model"
	"github.com/poks-pm/poks/internal/platform"
)

// InstallSelector installs a single app directly, outside of a
// poks.json run, per the programmatic `install_app(name, version?,
// bucket?)` API of §6.4. It searches buckets already synced under
// root's buckets directory — a direct install never triggers a bucket
// clone/pull of its own, since it has no bucket URL to sync from.
func InstallSelector(ctx context.Context, selector model.AppSelector, opts Options) (model.InstallResult, map[string]string, error) {
	hostOS, hostArch := platform.Detect()
	d := download.New(defaultDownloadTimeout)

	bucketPaths, order, err := existingBuckets(opts.Root.BucketsDir())
	if err != nil {
		return model.InstallResult{}, nil, err
	}

	result := model.InstallResult{Name: selector.Name, Version: selector.Version}
	if !selector.MatchesPlatform(hostOS, hostArch) {
		result.Status = model.StatusSkippedPlatform
		return result, nil, nil
	}

	manifestPath, _, err := locateManifest(selector, bucketPaths, order, opts)
	if err != nil {
		return model.InstallResult{}, nil, err
	}

	manifest, err := model.LoadManifest(manifestPath, opts.warn)
	if err != nil {
		return model.InstallResult{}, nil, err
	}
	if err := model.ValidateManifest(manifest, opts.warn); err != nil {
		return model.InstallResult{}, nil, err
	}

	r, updates := installResolved(ctx, selector.Name, selector.Version, manifest, hostOS, hostArch, selector, opts, d, result)
	return r, updates, nil
}

// InstallFromManifest installs a single version straight from a
// manifest file on disk, bypassing bucket lookup entirely, per the
// `install_from_manifest(manifest_path, version)` API of §6.4.
func InstallFromManifest(ctx context.Context, manifestPath, versionSpec string, opts Options) (model.InstallResult, map[string]string, error) {
	hostOS, hostArch := platform.Detect()
	d := download.New(defaultDownloadTimeout)

	manifest, err := model.LoadManifest(manifestPath, opts.warn)
	if err != nil {
		return model.InstallResult{}, nil, err
	}
	if err := model.ValidateManifest(manifest, opts.warn); err != nil {
		return model.InstallResult{}, nil, err
	}

	name := appNameFromManifestPath(manifestPath)
	selector := model.AppSelector{Name: name, Version: versionSpec}
	result := model.InstallResult{Name: name, Version: versionSpec}

	if !selector.MatchesPlatform(hostOS, hostArch) {
		result.Status = model.StatusSkippedPlatform
		return result, nil, nil
	}

	r, updates := installResolved(ctx, name, versionSpec, manifest, hostOS, hostArch, selector, opts, d, result)
	return r, updates, nil
}

func appNameFromManifestPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// existingBuckets lists already-cloned bucket directories in lexical
// order, since a direct install has no declared bucket order to fall
// back on.
func existingBuckets(bucketsDir string) (map[string]string, []string, error) {
	entries, err := os.ReadDir(bucketsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil, nil
		}
		return nil, nil, pokserrors.Wrap(pokserrors.CategoryIO, pokserrors.CodeIOError, "failed to list buckets directory", err)
	}

	paths := make(map[string]string, len(entries))
	var order []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(bucketsDir, e.Name())
		if !bucket.Exists(dir) {
			continue
		}
		paths[e.Name()] = dir
		order = append(order, e.Name())
	}
	sort.Strings(order)
	return paths, order, nil
}
