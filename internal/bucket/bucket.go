// Package bucket syncs bucket git repositories and locates the
// manifest file for an app within them, per §4.3.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	pokserrors "github.com/poks-pm/poks/internal/errors"
	"github.com/poks-pm/poks/internal/model"
)

// Dir returns the local directory a bucket named name syncs into,
// under bucketsRoot (typically "<root>/buckets").
func Dir(bucketsRoot, name string) string {
	return filepath.Join(bucketsRoot, name)
}

// Sync clones each bucket into bucketsRoot if missing, or fast-forward
// pulls it if present. Returns a name -> local path map. Config-level
// sync failures abort the run (§7 "Propagation policy").
func Sync(ctx context.Context, buckets []model.Bucket, bucketsRoot string) (map[string]string, error) {
	paths := make(map[string]string, len(buckets))
	for _, b := range buckets {
		dir := Dir(bucketsRoot, b.Name)
		if err := CloneOrPull(ctx, b.URL, dir); err != nil {
			return nil, pokserrors.Wrap(pokserrors.CategoryBucket, pokserrors.CodeBucketSyncError,
				fmt.Sprintf("failed to sync bucket %q", b.Name), err).
				WithDetail("bucket", b.Name).
				WithDetail("url", b.URL)
		}
		paths[b.Name] = dir
	}
	return paths, nil
}

// CloneOrPull clones url into dest if dest does not yet hold a
// repository, or fast-forward pulls it if it does. The bucket
// directory is owned by this call for its duration (§3 "Ownership &
// lifecycle"): no other goroutine syncs the same bucket concurrently
// (§5).
func CloneOrPull(ctx context.Context, url, dest string) error {
	if Exists(dest) {
		return pull(ctx, dest)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	return clone(ctx, url, dest)
}

func clone(ctx context.Context, url, dest string) error {
	slog.Debug("cloning bucket", "url", url, "dest", dest)
	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
	})
	if err != nil {
		return fmt.Errorf("failed to clone bucket: %w", err)
	}
	return nil
}

func pull(ctx context.Context, dest string) error {
	slog.Debug("pulling bucket", "dest", dest)
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return fmt.Errorf("failed to open bucket repository: %w", err)
	}

	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	err = w.PullContext(ctx, &git.PullOptions{SingleBranch: true})
	if err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			slog.Debug("bucket already up-to-date", "dest", dest)
			return nil
		}
		return fmt.Errorf("failed to pull --ff-only: %w", err)
	}
	return nil
}

// Exists reports whether a git repository is already checked out at path.
func Exists(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}
