// Package installer drives the install pipeline — resolve, download,
// extract, poke, activate — for every app in a Config, per §4.8.
package installer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/poks-pm/poks/internal/bucket"
	"github.com/poks-pm/poks/internal/checksum"
	"github.com/poks-pm/poks/internal/download"
	"github.com/poks-pm/poks/internal/env"
	pokserrors "github.com/poks-pm/poks/internal/errors"
	"github.com/poks-pm/poks/internal/extract"
	"github.com/poks-pm/poks/internal/model"
	"github.com/poks-pm/poks/internal/platform"
	"github.com/poks-pm/poks/internal/poke"
	"github.com/poks-pm/poks/internal/resolve"
	"github.com/poks-pm/poks/internal/rootpath"
)

const defaultDownloadTimeout = 60 * time.Second

// ProgressFunc reports download progress for one app.
type ProgressFunc func(name, version string, downloaded, total int64)

// Options configures an install run.
type Options struct {
	Root        *rootpath.Root
	Parallelism int
	Warn        func(msg string)
	Progress    ProgressFunc
}

func (o Options) parallelism() int64 {
	if o.Parallelism > 0 {
		return int64(o.Parallelism)
	}
	return int64(runtime.NumCPU())
}

func (o Options) warn(msg string) {
	if o.Warn != nil {
		o.Warn(msg)
	} else {
		slog.Warn(msg)
	}
}

// Install runs the pipeline for every selector in cfg and returns the
// aggregated, declaration-ordered results plus a merged env map.
// Bucket sync failures and other configuration-level errors abort the
// run; per-app failures are captured into that app's InstallResult.
func Install(ctx context.Context, cfg *model.Config, opts Options) (*model.AggregateResult, error) {
	hostOS, hostArch := platform.Detect()

	order := make([]string, 0, len(cfg.Buckets))
	for _, b := range cfg.Buckets {
		order = append(order, b.Name)
	}

	bucketPaths, err := bucket.Sync(ctx, cfg.Buckets, opts.Root.BucketsDir())
	if err != nil {
		return nil, err
	}

	d := download.New(defaultDownloadTimeout)

	results := make([]model.InstallResult, len(cfg.Apps))
	envUpdates := make([]map[string]string, len(cfg.Apps))

	sem := semaphore.NewWeighted(opts.parallelism())
	var wg sync.WaitGroup

	for i, selector := range cfg.Apps {
		i, selector := i, selector

		select {
		case <-ctx.Done():
			results[i] = model.InstallResult{Name: selector.Name, Version: selector.Version, Status: model.StatusSkippedCancelled}
			continue
		default:
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = model.InstallResult{Name: selector.Name, Version: selector.Version, Status: model.StatusSkippedCancelled}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			result, updates := installOne(ctx, selector, bucketPaths, order, hostOS, hostArch, opts, d)
			results[i] = result
			envUpdates[i] = updates
		}()
	}

	wg.Wait()

	merged := env.MergeUpdates(envUpdates, func(c env.Conflict) {
		opts.warn(fmt.Sprintf("env conflict on %q: %q overridden by %q", c.Key, c.OldValue, c.NewValue))
	})

	return &model.AggregateResult{Results: results, Env: merged}, nil
}

func installOne(
	ctx context.Context,
	selector model.AppSelector,
	bucketPaths map[string]string,
	bucketOrder []string,
	hostOS, hostArch string,
	opts Options,
	d *download.Downloader,
) (model.InstallResult, map[string]string) {
	result := model.InstallResult{Name: selector.Name, Version: selector.Version}

	if ctx.Err() != nil {
		result.Status = model.StatusSkippedCancelled
		return result, nil
	}

	if !selector.MatchesPlatform(hostOS, hostArch) {
		result.Status = model.StatusSkippedPlatform
		return result, nil
	}

	manifestPath, _, err := locateManifest(selector, bucketPaths, bucketOrder, opts)
	if err != nil {
		return failed(result, err)
	}

	manifest, err := model.LoadManifest(manifestPath, opts.warn)
	if err != nil {
		return failed(result, err)
	}
	if err := model.ValidateManifest(manifest, opts.warn); err != nil {
		return failed(result, err)
	}

	return installResolved(ctx, selector.Name, selector.Version, manifest, hostOS, hostArch, selector, opts, d, result)
}

// installResolved runs the version-resolution-through-activation tail
// of the pipeline shared by batch installs (installOne), direct
// single-app installs (InstallSelector), and manifest-file installs
// (InstallFromManifest).
func installResolved(
	ctx context.Context,
	name, versionSpec string,
	manifest *model.Manifest,
	hostOS, hostArch string,
	selector model.AppSelector,
	opts Options,
	d *download.Downloader,
	result model.InstallResult,
) (model.InstallResult, map[string]string) {
	version, err := resolve.ResolveVersion(manifest, versionSpec)
	if err != nil {
		return failed(result, err)
	}
	result.Version = version.Version

	if version.Yanked != "" {
		return failed(result, pokserrors.NewYankedVersionError(name, version.Version, version.Yanked))
	}

	installDir := opts.Root.AppVersionDir(name, version.Version)
	result.InstallDir = installDir

	if opts.Root.IsInstalled(name, version.Version) {
		result.Status = model.StatusSkippedExisting
		updates, err := env.CollectUpdates(version, installDir)
		if err != nil {
			return failed(result, err)
		}
		result.EnvUpdates = updates
		return result, updates
	}

	if err := installVersion(ctx, selector, manifest, version, installDir, hostOS, hostArch, opts, d); err != nil {
		return failed(result, err)
	}

	updates, err := env.CollectUpdates(version, installDir)
	if err != nil {
		return failed(result, err)
	}

	result.Status = model.StatusInstalled
	result.EnvUpdates = updates
	return result, updates
}

func locateManifest(selector model.AppSelector, bucketPaths map[string]string, bucketOrder []string, opts Options) (string, string, error) {
	if selector.Bucket != "" {
		dir, ok := bucketPaths[selector.Bucket]
		if !ok {
			return "", "", pokserrors.New(pokserrors.CategoryManifest, pokserrors.CodeManifestNotFound,
				fmt.Sprintf("bucket %q not synced", selector.Bucket)).WithDetail("bucket", selector.Bucket)
		}
		path, err := bucket.FindManifest(selector.Name, dir)
		return path, selector.Bucket, err
	}
	return bucket.FindManifestInBuckets(selector.Name, bucketPaths, bucketOrder, opts.warn)
}

func installVersion(
	ctx context.Context,
	selector model.AppSelector,
	manifest *model.Manifest,
	version *model.AppVersion,
	installDir string,
	hostOS, hostArch string,
	opts Options,
	d *download.Downloader,
) error {
	archive, err := resolve.SelectArchive(version, hostOS, hostArch)
	if err != nil {
		return err
	}

	resolved, err := resolve.ComputeURL(version, archive)
	if err != nil {
		return err
	}

	var progress download.ProgressFunc
	if opts.Progress != nil {
		progress = func(downloaded, total int64) {
			opts.Progress(selector.Name, version.Version, downloaded, total)
		}
	}

	archivePath, err := d.Fetch(ctx, resolved.URL, opts.Root.CacheDir(), archive.SHA256, progress)
	if err != nil {
		return err
	}

	if err := checksum.Verify(archivePath, resolved.URL, archive.SHA256); err != nil {
		return err
	}

	if err := os.MkdirAll(opts.Root.AppDir(selector.Name), 0o755); err != nil {
		return fmt.Errorf("failed to create app directory: %w", err)
	}
	staging, err := os.MkdirTemp(opts.Root.AppDir(selector.Name), ".staging-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	format := extract.NormalizeFormat(strings.TrimPrefix(resolved.Ext, "."))
	if err := extract.Extract(archivePath, format, staging); err != nil {
		return err
	}

	if format == extract.FormatConda {
		if err := pokeConda(staging, installDir); err != nil {
			return err
		}
	}

	if version.ExtractDir != "" {
		if err := extract.Flatten(staging, version.ExtractDir); err != nil {
			return err
		}
	}

	if err := persistManifest(staging, manifest); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("failed to clear existing install directory: %w", err)
	}
	if err := os.Rename(staging, installDir); err != nil {
		return fmt.Errorf("failed to finalize install directory: %w", err)
	}

	return nil
}

// pokeConda rewrites prefix placeholders in the payload staged under
// staging, replacing them with installDir — the directory the install
// will live in once staging is renamed into place — so relocated
// binaries and scripts point at their real final location rather than
// the temporary staging path.
func pokeConda(staging, installDir string) error {
	pathsFile := filepath.Join(staging, extract.CondaPathsFile)
	data, err := os.ReadFile(pathsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read conda paths metadata: %w", err)
	}

	var paths extract.Paths
	if err := json.Unmarshal(data, &paths); err != nil {
		return fmt.Errorf("failed to parse conda paths metadata: %w", err)
	}

	if err := poke.Patch(staging, installDir, paths); err != nil {
		return err
	}
	return os.Remove(pathsFile)
}

func persistManifest(installDir string, manifest *model.Manifest) error {
	data, err := model.SerializeManifest(manifest)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(installDir, ".manifest.json"), data, 0o644)
}

func failed(result model.InstallResult, err error) (model.InstallResult, map[string]string) {
	result.Status = model.StatusFailed
	result.Error = err.Error()
	return result, nil
}
