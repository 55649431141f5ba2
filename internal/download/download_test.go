package download

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poks-pm/poks/internal/checksum"
	pokserrors "github.com/poks-pm/poks/internal/errors"
)

func TestFetchDownloadsAndCaches(t *testing.T) {
	const body = "archive-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	sum, err := checksum.CalculateReader(strings.NewReader(body))
	require.NoError(t, err)

	cacheDir := t.TempDir()
	d := New(5 * time.Second)

	path, err := d.Fetch(t.Context(), srv.URL+"/foo.tar.gz", cacheDir, sum, nil)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	path2, err := d.Fetch(t.Context(), srv.URL+"/foo.tar.gz", cacheDir, sum, nil)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
}

func TestFetchRejects4xxWithoutRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := New(5 * time.Second)
	_, err := d.Fetch(t.Context(), srv.URL+"/missing.tar.gz", t.TempDir(), "", nil)
	require.Error(t, err)

	var httpErr *pokserrors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchChecksumMismatchRemovesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("actual-bytes"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	d := New(5 * time.Second)

	_, err := d.Fetch(t.Context(), srv.URL+"/foo.tar.gz", cacheDir, strings.Repeat("0", 64), nil)
	require.Error(t, err)

	key := checksum.CacheKey(cacheDir, srv.URL+"/foo.tar.gz")
	_, statErr := os.Stat(key)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchStaleCacheRedownloads(t *testing.T) {
	const goodBody = "good-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(goodBody))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	url := srv.URL + "/foo.tar.gz"
	key := checksum.CacheKey(cacheDir, url)
	require.NoError(t, os.MkdirAll(filepath.Dir(key), 0o755))
	require.NoError(t, os.WriteFile(key, []byte("stale-bytes"), 0o644))

	sum, err := checksum.CalculateReader(strings.NewReader(goodBody))
	require.NoError(t, err)

	d := New(5 * time.Second)
	path, err := d.Fetch(t.Context(), url, cacheDir, sum, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, goodBody, string(data))
}

func TestFetchConcurrentSameURLSingleFlighted(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("concurrent-bytes"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	d := New(5 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Fetch(t.Context(), srv.URL+"/shared.tar.gz", cacheDir, "", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
