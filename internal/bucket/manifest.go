package bucket

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pokserrors "github.com/poks-pm/poks/internal/errors"
)

// FindManifest returns the path to `<bucketDir>/<appName>.json` if it
// exists, or a ManifestNotFound error.
func FindManifest(appName, bucketDir string) (string, error) {
	path := filepath.Join(bucketDir, appName+".json")
	if _, err := os.Stat(path); err != nil {
		return "", pokserrors.New(pokserrors.CategoryManifest, pokserrors.CodeManifestNotFound,
			fmt.Sprintf("manifest %q not found in bucket directory %q", appName, bucketDir)).
			WithDetail("app", appName).
			WithDetail("bucket_dir", bucketDir)
	}
	return path, nil
}

// FindManifestInBuckets searches buckets (a name -> local path map) in
// declaration order and returns the path to the first manifest found.
// order fixes the search order explicitly since map iteration is
// unordered in Go; it must list every key of buckets. If multiple
// buckets contain the app, only the first is returned and warn (if
// non-nil) is called to note the collision, per §4.3.
func FindManifestInBuckets(appName string, buckets map[string]string, order []string, warn func(msg string)) (string, string, error) {
	var found string
	var foundBucket string
	searched := make([]string, 0, len(order))

	for _, name := range order {
		dir, ok := buckets[name]
		if !ok {
			continue
		}
		searched = append(searched, name)
		path, err := FindManifest(appName, dir)
		if err != nil {
			continue
		}
		if found == "" {
			found, foundBucket = path, name
		} else if warn != nil {
			warn(fmt.Sprintf("app %q found in multiple buckets (%q and %q); using %q", appName, foundBucket, name, foundBucket))
		}
	}

	if found == "" {
		sort.Strings(searched)
		return "", "", pokserrors.New(pokserrors.CategoryManifest, pokserrors.CodeManifestNotFound,
			fmt.Sprintf("manifest %q not found in any bucket", appName)).
			WithDetail("app", appName).
			WithDetail("searched", strings.Join(searched, ", "))
	}

	return found, foundBucket, nil
}
