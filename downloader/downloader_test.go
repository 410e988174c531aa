package downloader_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opentransit.dev/gtfsprep/downloader"
)

func feedServer(t *testing.T, body []byte, status int, requests *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests++
		w.WriteHeader(status)
		w.Write(body)
	}))
}

func TestHTTPGet(t *testing.T) {
	requests := 0
	server := feedServer(t, []byte("feed bytes"), http.StatusOK, &requests)
	defer server.Close()

	body, err := downloader.HTTPGet(
		context.Background(),
		server.URL,
		nil,
		downloader.GetOptions{},
	)
	require.NoError(t, err)
	assert.Equal(t, []byte("feed bytes"), body)
	assert.Equal(t, 1, requests)
}

func TestHTTPGetNon200(t *testing.T) {
	requests := 0
	server := feedServer(t, nil, http.StatusNotFound, &requests)
	defer server.Close()

	_, err := downloader.HTTPGet(
		context.Background(),
		server.URL,
		nil,
		downloader.GetOptions{},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestHTTPGetMaxSize(t *testing.T) {
	requests := 0
	server := feedServer(t, []byte("this feed is rather large"), http.StatusOK, &requests)
	defer server.Close()

	_, err := downloader.HTTPGet(
		context.Background(),
		server.URL,
		nil,
		downloader.GetOptions{MaxSize: 10},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 10 bytes")
}

func TestHTTPGetHeaders(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	_, err := downloader.HTTPGet(
		context.Background(),
		server.URL,
		map[string]string{"X-Api-Key": "sekrit"},
		downloader.GetOptions{},
	)
	require.NoError(t, err)
	assert.Equal(t, "sekrit", gotKey)
}

func TestMemoryCaches(t *testing.T) {
	requests := 0
	server := feedServer(t, []byte("feed bytes"), http.StatusOK, &requests)
	defer server.Close()

	now := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	dl := downloader.NewMemory()
	dl.TimeNow = func() time.Time { return now }

	options := downloader.GetOptions{Cache: true, CacheTTL: time.Hour}

	body, err := dl.Get(context.Background(), server.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, []byte("feed bytes"), body)
	assert.Equal(t, 1, requests)

	// Within TTL: served from cache
	now = now.Add(30 * time.Minute)
	body, err = dl.Get(context.Background(), server.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, []byte("feed bytes"), body)
	assert.Equal(t, 1, requests)

	// Past TTL: downloaded again
	now = now.Add(2 * time.Hour)
	_, err = dl.Get(context.Background(), server.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestMemoryWithoutCache(t *testing.T) {
	requests := 0
	server := feedServer(t, []byte("feed bytes"), http.StatusOK, &requests)
	defer server.Close()

	dl := downloader.NewMemory()

	for i := 0; i < 3; i++ {
		_, err := dl.Get(context.Background(), server.URL, nil, downloader.GetOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, requests)
}

func TestFilesystemCaches(t *testing.T) {
	requests := 0
	server := feedServer(t, []byte("feed bytes"), http.StatusOK, &requests)
	defer server.Close()

	dir, err := os.MkdirTemp("", "gtfsprep_downloader_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	dl, err := downloader.NewFilesystem(dir)
	require.NoError(t, err)

	options := downloader.GetOptions{Cache: true, CacheTTL: time.Hour}

	body, err := dl.Get(context.Background(), server.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, []byte("feed bytes"), body)
	assert.Equal(t, 1, requests)

	// The zip and the index land on disk
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "index.json")
	assert.Len(t, names, 2)

	// A fresh instance reads the same cache
	dl2, err := downloader.NewFilesystem(dir)
	require.NoError(t, err)
	body, err = dl2.Get(context.Background(), server.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, []byte("feed bytes"), body)
	assert.Equal(t, 1, requests)
}

func TestFilesystemRedownloadsWhenZipMissing(t *testing.T) {
	requests := 0
	server := feedServer(t, []byte("feed bytes"), http.StatusOK, &requests)
	defer server.Close()

	dir, err := os.MkdirTemp("", "gtfsprep_downloader_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	dl, err := downloader.NewFilesystem(dir)
	require.NoError(t, err)

	options := downloader.GetOptions{Cache: true, CacheTTL: time.Hour}

	_, err = dl.Get(context.Background(), server.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)

	// Delete the cached zip but keep the index
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Name() != "index.json" {
			require.NoError(t, os.Remove(filepath.Join(dir, e.Name())))
		}
	}

	body, err := dl.Get(context.Background(), server.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, []byte("feed bytes"), body)
	assert.Equal(t, 2, requests)
}
