package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// githubScheme marks locations of the form
// github://owner/repo/<tag>/<asset>, which resolve to a release asset
// download URL through the GitHub API. An API token is picked up from
// GITHUB_TOKEN when present; public repositories work without one.
const githubScheme = "github://"

// assetResolver turns a github:// location into a direct download
// URL.
type assetResolver interface {
	resolve(ctx context.Context, location string) (string, error)
}

type githubResolver struct {
	client *github.Client
}

// newGitHubResolver builds a resolver over the shared HTTP client,
// wrapping it with oauth2 when GITHUB_TOKEN is set.
func newGitHubResolver(httpClient *http.Client) *githubResolver {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		base := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		return &githubResolver{client: github.NewClient(oauth2.NewClient(base, src))}
	}
	return &githubResolver{client: github.NewClient(httpClient)}
}

func (r *githubResolver) resolve(ctx context.Context, location string) (string, error) {
	owner, repo, tag, asset, err := parseGitHubLocation(location)
	if err != nil {
		return "", err
	}

	release, _, err := r.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return "", fmt.Errorf("failed to look up release %s/%s@%s: %w", owner, repo, tag, err)
	}

	for _, a := range release.Assets {
		if a.GetName() == asset {
			return a.GetBrowserDownloadURL(), nil
		}
	}
	return "", fmt.Errorf("release %s/%s@%s has no asset %q", owner, repo, tag, asset)
}

// parseGitHubLocation splits github://owner/repo/tag/asset.
func parseGitHubLocation(location string) (owner, repo, tag, asset string, err error) {
	rest := strings.TrimPrefix(location, githubScheme)
	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return "", "", "", "", fmt.Errorf("invalid github location %q: want github://owner/repo/tag/asset", location)
	}
	for _, p := range parts {
		if p == "" {
			return "", "", "", "", fmt.Errorf("invalid github location %q: empty component", location)
		}
	}
	return parts[0], parts[1], parts[2], parts[3], nil
}
