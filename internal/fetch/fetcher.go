// Package fetch retrieves published artifacts, verifies their digest,
// and stages them for installation.
//
// A manifest entry's location selects the transport: bare filesystem
// paths and file:// URIs are read locally, http(s):// locations are
// downloaded with bounded retry, and github:// locations resolve a
// release asset through the GitHub API. Whatever the transport, the
// digest gate runs before the caller sees a byte.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/httputil"
	"github.com/kamado-dev/kamado/internal/log"
	"github.com/kamado-dev/kamado/internal/manifest"
)

// Fetcher retrieves artifact archives described by manifest entries.
type Fetcher struct {
	cfg     *config.Config
	client  *http.Client
	logger  log.Logger
	retries int
	backoff time.Duration
	github  assetResolver
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithRetries sets the retry bound for transient network errors.
func WithRetries(n int) Option {
	return func(f *Fetcher) { f.retries = n }
}

// WithBackoff sets the base backoff delay between attempts.
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) { f.backoff = d }
}

// withAssetResolver replaces the GitHub release asset resolver in
// tests.
func withAssetResolver(r assetResolver) Option {
	return func(f *Fetcher) { f.github = r }
}

// New creates a Fetcher staging downloads under cfg.StagingDir.
func New(cfg *config.Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg: cfg,
		client: httputil.NewClient(httputil.ClientOptions{
			Timeout: config.GetFetchTimeout(),
		}),
		logger:  log.Default(),
		retries: config.GetFetchRetries(),
		backoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.github == nil {
		f.github = newGitHubResolver(f.client)
	}
	return f
}

// Fetch retrieves the entry's archive and returns the path of a local
// file whose digest has been verified against the entry.
//
// Remote retrievals are written to a uniquely named staging file that
// is removed on any failure, so no partial download ever sits at a
// path the installer could mistake for a complete artifact. Local
// locations are verified in place and returned directly.
func (f *Fetcher) Fetch(ctx context.Context, entry manifest.ArtifactEntry) (string, error) {
	location := entry.Location

	switch {
	case strings.HasPrefix(location, "file://"):
		return f.fetchLocal(strings.TrimPrefix(location, "file://"), entry)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return f.fetchRemote(ctx, location, entry)
	case strings.HasPrefix(location, githubScheme):
		url, err := f.github.resolve(ctx, location)
		if err != nil {
			return "", &NetworkError{Location: location, Err: err}
		}
		return f.fetchRemote(ctx, url, entry)
	case strings.Contains(location, "://"):
		return "", fmt.Errorf("artifact %s: unsupported location scheme in %q", entry.ArtifactKey, location)
	default:
		return f.fetchLocal(location, entry)
	}
}

// fetchLocal verifies a filesystem artifact in place.
func (f *Fetcher) fetchLocal(path string, entry manifest.ArtifactEntry) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("artifact %s: failed to read local artifact: %w", entry.ArtifactKey, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("artifact %s: failed to read local artifact: %w", entry.ArtifactKey, err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if actual != entry.Digest {
		return "", &DigestMismatchError{
			Key:      entry.ArtifactKey,
			Location: path,
			Expected: entry.Digest,
			Actual:   actual,
		}
	}

	f.logger.Debug("verified local artifact", "artifact", entry.ArtifactKey.String(), "path", path)
	return path, nil
}

// fetchRemote downloads with bounded retry and stages the result.
func (f *Fetcher) fetchRemote(ctx context.Context, url string, entry manifest.ArtifactEntry) (string, error) {
	if err := os.MkdirAll(f.cfg.StagingDir, 0755); err != nil {
		return "", fmt.Errorf("artifact %s: failed to create staging directory: %w", entry.ArtifactKey, err)
	}

	attempts := f.retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := f.backoff << (attempt - 2)
			f.logger.Warn("transient fetch failure, retrying",
				"artifact", entry.ArtifactKey.String(),
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", &NetworkError{Location: url, Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		staged, err := f.downloadOnce(ctx, url, entry)
		if err == nil {
			return staged, nil
		}

		// Integrity failures abort immediately, whatever the
		// retry budget says.
		if IsDigestMismatch(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", &NetworkError{Location: url, Attempts: attempt, Err: ctx.Err()}
		}
		if !retryable(err) {
			return "", &NetworkError{Location: url, Attempts: attempt, Err: err}
		}
		lastErr = err
	}

	return "", &NetworkError{Location: url, Transient: true, Attempts: attempts, Err: lastErr}
}

// downloadOnce performs a single attempt: download to a unique
// staging file, digest while writing, compare, and clean up on any
// failure.
func (f *Fetcher) downloadOnce(ctx context.Context, url string, entry manifest.ArtifactEntry) (_ string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode}
	}

	staged, err := os.CreateTemp(f.cfg.StagingDir, "fetch-*-"+filepath.Base(url))
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	stagedPath := staged.Name()
	defer func() {
		if err != nil {
			os.Remove(stagedPath)
		}
	}()

	h := sha256.New()
	_, err = io.Copy(staged, io.TeeReader(resp.Body, h))
	closeErr := staged.Close()
	if err != nil {
		return "", err
	}
	if closeErr != nil {
		return "", closeErr
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if actual != entry.Digest {
		err = &DigestMismatchError{
			Key:      entry.ArtifactKey,
			Location: url,
			Expected: entry.Digest,
			Actual:   actual,
		}
		return "", err
	}

	f.logger.Debug("staged artifact",
		"artifact", entry.ArtifactKey.String(),
		"staged", stagedPath,
		"digest", actual)
	return stagedPath, nil
}

// FetchBytes retrieves a small document (a manifest) from a location
// without a digest gate; manifests are covered by the digests they
// carry, not by one of their own.
func (f *Fetcher) FetchBytes(ctx context.Context, location string) ([]byte, error) {
	switch {
	case strings.HasPrefix(location, "file://"):
		return os.ReadFile(strings.TrimPrefix(location, "file://"))
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return f.getWithRetry(ctx, location)
	case strings.Contains(location, "://"):
		return nil, fmt.Errorf("unsupported location scheme in %q", location)
	default:
		return os.ReadFile(location)
	}
}

func (f *Fetcher) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	attempts := f.retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(f.backoff << (attempt - 2)):
			case <-ctx.Done():
				return nil, &NetworkError{Location: url, Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		data, err := f.getOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, &NetworkError{Location: url, Attempts: attempt, Err: ctx.Err()}
		}
		if !retryable(err) {
			return nil, &NetworkError{Location: url, Attempts: attempt, Err: err}
		}
		lastErr = err
	}

	return nil, &NetworkError{Location: url, Transient: true, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
