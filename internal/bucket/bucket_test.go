package bucket

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poks-pm/poks/internal/model"
)

// newLocalSourceRepo creates a throwaway git repository on disk with
// one committed file, for use as a file:// bucket origin in tests.
func newLocalSourceRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.json"), []byte(`{"description":"x","versions":[]}`), 0o644))

	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add("foo.json")
	require.NoError(t, err)
	_, err = w.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "poks test",
			Email: "test@example.com",
			When:  time.Unix(0, 0),
		},
	})
	require.NoError(t, err)

	return dir
}

func TestCloneOrPullClonesThenPulls(t *testing.T) {
	srcDir := newLocalSourceRepo(t)
	destDir := filepath.Join(t.TempDir(), "main")

	err := CloneOrPull(context.Background(), "file://"+srcDir, destDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(destDir, "foo.json"))
	assert.True(t, Exists(destDir))

	// Second call should pull (no-op, already up to date) rather than fail.
	err = CloneOrPull(context.Background(), "file://"+srcDir, destDir)
	require.NoError(t, err)
}

func TestSyncMultipleBuckets(t *testing.T) {
	srcDir := newLocalSourceRepo(t)
	root := t.TempDir()

	buckets := []model.Bucket{{Name: "main", URL: "file://" + srcDir}, {Name: "extras", URL: "file://" + srcDir}}
	paths, err := Sync(context.Background(), buckets, filepath.Join(root, "buckets"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "buckets", "main"), paths["main"])
	assert.FileExists(t, filepath.Join(paths["main"], "foo.json"))
	assert.Equal(t, filepath.Join(root, "buckets", "extras"), paths["extras"])
	assert.FileExists(t, filepath.Join(paths["extras"], "foo.json"))
}

func TestSyncAbortsOnFailure(t *testing.T) {
	root := t.TempDir()
	buckets := []model.Bucket{{Name: "broken", URL: "file:///does/not/exist"}}
	_, err := Sync(context.Background(), buckets, filepath.Join(root, "buckets"))
	require.Error(t, err)
}

func TestExistsFalseForNonRepo(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))
}
