// Package github fetches repository metadata rows from the GitHub API
// for the repository CSV consumed by the consolidate stage.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/droidgraph/droidgraph/internal/csvutil"
)

// MetadataHeader is the column order of the repository metadata CSV.
var MetadataHeader = []string{
	"id", "full_name", "renamed_to", "not_found", "owner_login", "name",
	"description", "created_at", "forks_count", "stargazers_count",
	"subscribers_count", "watchers_count", "network_count", "owner_type",
	"parent_id", "source_id",
}

// Client wraps the GitHub API client with rate limiting.
type Client struct {
	client      *github.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a GitHub client limited to rateLimit requests per
// second.
func NewClient(token string, rateLimit int) *Client {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Client{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// FetchRepositoryRow fetches metadata for fullName ("owner/repo") and
// formats it as a repository CSV row. A repository that no longer
// exists yields a row marked not_found; one that moved records its new
// name in renamed_to.
func (c *Client) FetchRepositoryRow(ctx context.Context, fullName string) (csvutil.Row, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	repo, resp, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return csvutil.Row{
				"full_name": fullName,
				"not_found": "TRUE",
			}, nil
		}
		return nil, fmt.Errorf("fetch repository %s: %w", fullName, err)
	}

	row := csvutil.Row{
		"id":                strconv.FormatInt(repo.GetID(), 10),
		"full_name":         fullName,
		"not_found":         "FALSE",
		"owner_login":       repo.GetOwner().GetLogin(),
		"name":              repo.GetName(),
		"description":       repo.GetDescription(),
		"created_at":        repo.GetCreatedAt().Format(time.RFC3339),
		"forks_count":       strconv.Itoa(repo.GetForksCount()),
		"stargazers_count":  strconv.Itoa(repo.GetStargazersCount()),
		"subscribers_count": strconv.Itoa(repo.GetSubscribersCount()),
		"watchers_count":    strconv.Itoa(repo.GetWatchersCount()),
		"network_count":     strconv.Itoa(repo.GetNetworkCount()),
		"owner_type":        repo.GetOwner().GetType(),
	}

	// The API follows renames transparently; a differing full name
	// means the repository moved since it was matched.
	if !strings.EqualFold(repo.GetFullName(), fullName) {
		row["renamed_to"] = repo.GetFullName()
	}
	if parent := repo.GetParent(); parent != nil {
		row["parent_id"] = strconv.FormatInt(parent.GetID(), 10)
	}
	if source := repo.GetSource(); source != nil {
		row["source_id"] = strconv.FormatInt(source.GetID(), 10)
	}
	return row, nil
}

func splitFullName(fullName string) (owner, name string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q", fullName)
	}
	return parts[0], parts[1], nil
}
