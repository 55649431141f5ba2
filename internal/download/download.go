// Package download fetches archives over HTTP into a content-addressed
// cache, verifying their sha256 digest against the manifest, per §4.4.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/poks-pm/poks/internal/checksum"
	pokserrors "github.com/poks-pm/poks/internal/errors"
)

const (
	maxAttempts  = 3
	initialDelay = 500 * time.Millisecond
)

// ProgressFunc is called as bytes are received; total is -1 if the
// server did not report Content-Length.
type ProgressFunc func(downloaded, total int64)

// Downloader fetches and caches archives over HTTP.
type Downloader struct {
	client *http.Client
	group  singleflight.Group
}

// New returns a Downloader with the given timeout applied per attempt.
func New(timeout time.Duration) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the local path to url's content inside cacheDir,
// downloading it if not already cached. When sha256 is non-empty the
// cached or freshly downloaded file is verified against it; a stale
// cache entry that fails verification is re-downloaded once.
//
// Concurrent Fetch calls for the same URL are coalesced via
// singleflight so only one HTTP request is in flight per cache key.
func (d *Downloader) Fetch(ctx context.Context, url, cacheDir, sha256 string, progress ProgressFunc) (string, error) {
	dest := checksum.CacheKey(cacheDir, url)

	v, err, _ := d.group.Do(dest, func() (any, error) {
		return d.fetchLocked(ctx, url, dest, sha256, progress)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (d *Downloader) fetchLocked(ctx context.Context, url, dest, expectedSHA256 string, progress ProgressFunc) (string, error) {
	if fileExists(dest) {
		if expectedSHA256 == "" {
			slog.Debug("cache hit, no checksum to verify", "url", url, "path", dest)
			return dest, nil
		}
		if err := checksum.Verify(dest, url, expectedSHA256); err == nil {
			slog.Debug("cache hit", "url", url, "path", dest)
			return dest, nil
		}
		slog.Warn("cached file failed checksum verification, re-downloading", "url", url, "path", dest)
		if err := os.Remove(dest); err != nil {
			return "", fmt.Errorf("failed to remove stale cache entry: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := d.downloadWithRetry(ctx, url, dest, progress); err != nil {
		return "", err
	}

	if expectedSHA256 != "" {
		if err := checksum.Verify(dest, url, expectedSHA256); err != nil {
			_ = os.Remove(dest)
			return "", err
		}
	}

	return dest, nil
}

func (d *Downloader) downloadWithRetry(ctx context.Context, url, dest string, progress ProgressFunc) error {
	delay := initialDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := d.downloadOnce(ctx, url, dest, progress)
		if err == nil {
			return nil
		}

		var httpErr *pokserrors.HTTPError
		if errors.As(err, &httpErr) {
			return err
		}

		lastErr = err
		slog.Debug("download attempt failed", "url", url, "attempt", attempt, "error", err)
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return pokserrors.Wrap(pokserrors.CategoryNetwork, pokserrors.CodeHTTPError,
		fmt.Sprintf("failed to download %q after %d attempts", url, maxAttempts), lastErr)
}

func (d *Downloader) downloadOnce(ctx context.Context, url, dest string, progress ProgressFunc) error {
	slog.Debug("downloading", "url", url, "dest", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pokserrors.NewHTTPError(url, resp.StatusCode)
	}

	tmpPath := dest + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	var reader io.Reader = resp.Body
	if progress != nil {
		reader = &progressReader{r: resp.Body, total: resp.ContentLength, onProgress: progress}
	}

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename downloaded file: %w", err)
	}

	slog.Debug("download completed", "url", url, "dest", dest)
	return nil
}

type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.onProgress(p.read, p.total)
	}
	return n, err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
