package installer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pokserrors "github.com/poks-pm/poks/internal/errors"
	"github.com/poks-pm/poks/internal/model"
	"github.com/poks-pm/poks/internal/rootpath"
)

// Uninstall removes one app version, or every version of an app when
// version is empty. missingOK suppresses the error when the target
// does not exist, per §4.9.
func Uninstall(root *rootpath.Root, name, version string, missingOK bool) error {
	if version != "" {
		dir := root.AppVersionDir(name, version)
		if err := removeRequired(dir, missingOK); err != nil {
			return err
		}

		remaining, err := os.ReadDir(root.AppDir(name))
		if err == nil && len(remaining) == 0 {
			_ = os.Remove(root.AppDir(name))
		}
		return nil
	}

	return removeRequired(root.AppDir(name), missingOK)
}

// UninstallAll wipes every installed app.
func UninstallAll(root *rootpath.Root) error {
	if err := os.RemoveAll(root.AppsDir()); err != nil {
		return pokserrors.Wrap(pokserrors.CategoryIO, pokserrors.CodeIOError, "failed to remove apps directory", err)
	}
	return nil
}

func removeRequired(dir string, missingOK bool) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			if missingOK {
				return nil
			}
			return pokserrors.New(pokserrors.CategoryIO, pokserrors.CodeIOError,
				fmt.Sprintf("%q does not exist", dir)).WithDetail("path", dir)
		}
		return pokserrors.Wrap(pokserrors.CategoryIO, pokserrors.CodeIOError, "failed to stat install directory", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return pokserrors.Wrap(pokserrors.CategoryIO, pokserrors.CodeIOError, "failed to remove install directory", err)
	}
	return nil
}

// List enumerates every installed app version under root that carries
// a persisted manifest, deriving bin dirs and env from it, per §4.9.
func List(root *rootpath.Root) ([]model.InstalledApp, error) {
	var apps []model.InstalledApp

	appEntries, err := os.ReadDir(root.AppsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return apps, nil
		}
		return nil, pokserrors.Wrap(pokserrors.CategoryIO, pokserrors.CodeIOError, "failed to list apps directory", err)
	}

	for _, appEntry := range appEntries {
		if !appEntry.IsDir() {
			continue
		}
		name := appEntry.Name()

		versionEntries, err := os.ReadDir(root.AppDir(name))
		if err != nil {
			continue
		}

		for _, versionEntry := range versionEntries {
			if !versionEntry.IsDir() {
				continue
			}
			version := versionEntry.Name()
			installDir := root.AppVersionDir(name, version)

			manifest, err := loadPersistedManifest(root.ManifestPath(name, version))
			if err != nil {
				continue
			}

			av := manifest.Version(version)
			if av == nil {
				continue
			}

			binDirs := make([]string, 0, len(av.Bin))
			for _, b := range av.Bin {
				binDirs = append(binDirs, filepath.Join(installDir, b))
			}

			envValues := make(map[string]string, len(av.Env))
			for k, v := range av.Env {
				envValues[k] = v
			}

			apps = append(apps, model.InstalledApp{
				Name:       name,
				Version:    version,
				InstallDir: installDir,
				BinDirs:    binDirs,
				Env:        envValues,
			})
		}
	}

	return apps, nil
}

func loadPersistedManifest(path string) (*model.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Search scans every manifest across every synced bucket and returns
// those whose app name contains query (case-insensitive), per §4.9.
func Search(root *rootpath.Root, query string) ([]model.SearchHit, error) {
	var hits []model.SearchHit
	query = strings.ToLower(query)

	bucketEntries, err := os.ReadDir(root.BucketsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return hits, nil
		}
		return nil, pokserrors.Wrap(pokserrors.CategoryIO, pokserrors.CodeIOError, "failed to list buckets directory", err)
	}

	for _, bucketEntry := range bucketEntries {
		if !bucketEntry.IsDir() {
			continue
		}
		bucketName := bucketEntry.Name()
		bucketDir := root.BucketDir(bucketName)

		manifestFiles, err := os.ReadDir(bucketDir)
		if err != nil {
			continue
		}

		for _, f := range manifestFiles {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			appName := strings.TrimSuffix(f.Name(), ".json")
			if !strings.Contains(strings.ToLower(appName), query) {
				continue
			}

			manifest, err := loadPersistedManifest(filepath.Join(bucketDir, f.Name()))
			if err != nil {
				continue
			}

			versions := make([]string, 0, len(manifest.Versions))
			for _, v := range manifest.Versions {
				versions = append(versions, v.Version)
			}

			hits = append(hits, model.SearchHit{
				Bucket:      bucketName,
				Name:        appName,
				Versions:    versions,
				Description: manifest.Description,
			})
		}
	}

	return hits, nil
}
