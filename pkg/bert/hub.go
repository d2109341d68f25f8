package bert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	DefaultHubURL   = "https://huggingface.co"
	DefaultRevision = "main"

	tokenizerConfigFile = "tokenizer_config.json"
	maxRedirects        = 10
)

var ErrArtifactMissing = errors.New("model artifact missing")

// FetchOptions locates a model repository on a Hugging Face compatible hub.
type FetchOptions struct {
	HubURL   string
	Repo     string
	Revision string
	CacheDir string
	Token    string
	Timeout  time.Duration
	// Offline disables downloads; every artifact must already be cached.
	Offline bool
}

// FetchResult reports where the artifacts live and which ones were downloaded.
type FetchResult struct {
	Dir        string
	Downloaded []string
}

// Fetch makes sure config.json, vocab.txt and model.safetensors exist under
// CacheDir/<repo>, downloading whatever is missing. tokenizer_config.json is
// fetched when available but is optional.
func Fetch(opts FetchOptions) (*FetchResult, error) {
	if opts.Repo == "" {
		return nil, errors.New("model repo is required")
	}
	if opts.HubURL == "" {
		opts.HubURL = DefaultHubURL
	}
	if opts.Revision == "" {
		opts.Revision = DefaultRevision
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	dir := filepath.Join(opts.CacheDir, strings.ReplaceAll(opts.Repo, "/", "--"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model cache dir %s: %w", dir, err)
	}

	res := &FetchResult{Dir: dir}
	for _, name := range []string{ConfigFile, VocabFile, WeightsFile, tokenizerConfigFile} {
		required := name != tokenizerConfigFile
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			continue
		}
		if opts.Offline {
			if required {
				return nil, missingArtifact(name, dir, fmt.Sprintf("%s (offline)", path))
			}
			continue
		}
		ok, err := download(opts, name, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			if required {
				return nil, missingArtifact(name, dir, fmt.Sprintf("%s not found in %s@%s", name, opts.Repo, opts.Revision))
			}
			continue
		}
		res.Downloaded = append(res.Downloaded, name)
	}
	return res, nil
}

// missingArtifact explains the weights case: only safetensors checkpoints
// can be loaded, and some hub revisions ship pytorch_model.bin alone.
func missingArtifact(name, dir, detail string) error {
	if name == WeightsFile {
		return fmt.Errorf("%w: %s; only %s weights are supported, use a revision that ships it or place a converted file in %s",
			ErrArtifactMissing, detail, WeightsFile, dir)
	}
	return fmt.Errorf("%w: %s", ErrArtifactMissing, detail)
}

// download returns false when the hub answers 404 for the file. Redirects
// are followed across hosts since the hub serves large files from a CDN.
func download(opts FetchOptions, name, dest string) (bool, error) {
	url := fmt.Sprintf("%s/%s/resolve/%s/%s", strings.TrimRight(opts.HubURL, "/"), opts.Repo, opts.Revision, name)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if opts.Token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+opts.Token)
	}

	client := &fasthttp.Client{
		Name:         "spamguard",
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	}
	if err := client.DoRedirects(req, resp, maxRedirects); err != nil {
		return false, fmt.Errorf("failed to download %s: %w", url, err)
	}
	switch code := resp.StatusCode(); code {
	case fasthttp.StatusOK:
	case fasthttp.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("failed to download %s: unexpected status %d", url, code)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+name+".*")
	if err != nil {
		return false, fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(resp.Body()); err != nil {
		tmp.Close()
		return false, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return false, fmt.Errorf("failed to move %s into cache: %w", name, err)
	}
	return true, nil
}
