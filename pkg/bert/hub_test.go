package bert

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHub(t *testing.T, files map[string]string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		prefix := "/acme/tiny/resolve/main/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}
		body, ok := files[strings.TrimPrefix(r.URL.Path, prefix)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetch_DownloadsMissingArtifacts(t *testing.T) {
	srv, hits := newHub(t, map[string]string{
		ConfigFile:  `{"hidden_size": 8}`,
		VocabFile:   "[PAD]\n[UNK]\n[CLS]\n[SEP]\n",
		WeightsFile: "weights",
	})
	cache := t.TempDir()
	opts := FetchOptions{HubURL: srv.URL, Repo: "acme/tiny", CacheDir: cache, Timeout: 5 * time.Second}

	res, err := Fetch(opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "acme--tiny"), res.Dir)
	assert.ElementsMatch(t, []string{ConfigFile, VocabFile, WeightsFile}, res.Downloaded)

	raw, err := os.ReadFile(filepath.Join(res.Dir, WeightsFile))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(raw))

	before := hits.Load()
	res, err = Fetch(opts)
	require.NoError(t, err)
	assert.Empty(t, res.Downloaded)
	// Only the optional tokenizer config is retried.
	assert.Equal(t, before+1, hits.Load())
}

func TestFetch_MissingRequiredArtifact(t *testing.T) {
	srv, _ := newHub(t, map[string]string{ConfigFile: "{}"})
	_, err := Fetch(FetchOptions{HubURL: srv.URL, Repo: "acme/tiny", CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.NotContains(t, err.Error(), "converted")
}

func TestFetch_MissingWeightsExplainsFormat(t *testing.T) {
	// A revision that only ships pytorch_model.bin.
	srv, _ := newHub(t, map[string]string{
		ConfigFile:          "{}",
		VocabFile:           "[PAD]\n",
		"pytorch_model.bin": "torch",
	})
	cache := t.TempDir()
	_, err := Fetch(FetchOptions{HubURL: srv.URL, Repo: "acme/tiny", CacheDir: cache})
	require.ErrorIs(t, err, ErrArtifactMissing)
	assert.ErrorContains(t, err, "model.safetensors not found in acme/tiny@main")
	assert.ErrorContains(t, err, "only model.safetensors weights are supported")
	assert.ErrorContains(t, err, filepath.Join(cache, "acme--tiny"))
}

func TestFetch_Offline(t *testing.T) {
	cache := t.TempDir()
	dir := filepath.Join(cache, "acme--tiny")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := Fetch(FetchOptions{Repo: "acme/tiny", CacheDir: cache, Offline: true})
	assert.ErrorIs(t, err, ErrArtifactMissing)

	for _, f := range []string{ConfigFile, VocabFile, WeightsFile} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644))
	}
	res, err := Fetch(FetchOptions{Repo: "acme/tiny", CacheDir: cache, Offline: true})
	require.NoError(t, err)
	assert.Empty(t, res.Downloaded)
}

func TestFetch_RequiresRepo(t *testing.T) {
	_, err := Fetch(FetchOptions{CacheDir: t.TempDir()})
	assert.Error(t, err)
}
