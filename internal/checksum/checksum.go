// Package checksum computes and verifies sha256 digests of downloaded
// archives, and derives content-addressed cache keys from a URL, per
// §4.4.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	pokserrors "github.com/poks-pm/poks/internal/errors"
)

// CalculateFile returns the lowercase hex sha256 digest of the file at path.
func CalculateFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return CalculateReader(f)
}

// CalculateReader returns the lowercase hex sha256 digest of r's contents.
func CalculateReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to read data: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks that the file at path has the expected sha256 digest,
// returning a ChecksumMismatchError carrying url for diagnostics if not.
func Verify(path, url, expected string) error {
	actual, err := CalculateFile(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return pokserrors.NewChecksumMismatchError(url, expected, actual)
	}
	return nil
}

// CacheKey returns the content-addressed cache path for rawURL: a
// file named after the first 8 hex characters of sha256(rawURL), an
// underscore, and the last path segment of the URL with any query
// string stripped, rooted at cacheDir, per §4.4.
func CacheKey(cacheDir, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	prefix := hex.EncodeToString(sum[:])[:8]
	return filepath.Join(cacheDir, prefix+"_"+basenameWithoutQuery(rawURL))
}

// basenameWithoutQuery returns the last path segment of rawURL,
// ignoring any query string. Falls back to filepath.Base(rawURL) if
// rawURL doesn't parse as a URL.
func basenameWithoutQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return filepath.Base(rawURL)
	}
	return filepath.Base(u.Path)
}

// ClearCache deletes every entry under cacheDir without removing the
// directory itself, per §4.4's "Cache controls: clear(cache_dir)".
func ClearCache(cacheDir string) error {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return pokserrors.Wrap(pokserrors.CategoryIO, pokserrors.CodeIOError, "failed to list cache directory", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(cacheDir, e.Name())); err != nil {
			return pokserrors.Wrap(pokserrors.CategoryIO, pokserrors.CodeIOError, "failed to remove cache entry", err)
		}
	}
	return nil
}

// CacheSize returns the total size in bytes of every file under
// cacheDir, per §4.4's "size(cache_dir)".
func CacheSize(cacheDir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(cacheDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, pokserrors.Wrap(pokserrors.CategoryIO, pokserrors.CodeIOError, "failed to walk cache directory", err)
	}
	return total, nil
}
