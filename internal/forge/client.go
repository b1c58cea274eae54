// Package forge reads repository snapshots from the GitLab instance
// that mirrors the scraped repositories. Listings are consumed eagerly
// page by page; a failed call ends the run.
package forge

import (
	"context"
	"fmt"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// Project is a snapshot repository on the mirror.
type Project struct {
	ID            int
	Path          string
	WebURL        string
	CreatedAt     time.Time
	DefaultBranch string
}

// Commit is one commit of a snapshot repository.
type Commit struct {
	ID             string
	ShortID        string
	Title          string
	Message        string
	AuthorName     string
	AuthorEmail    string
	AuthoredDate   time.Time
	CommitterName  string
	CommitterEmail string
	CommittedDate  time.Time
	ParentIDs      []string
}

// Tag is a git tag and the commit it points to.
type Tag struct {
	Name     string
	Message  string
	CommitID string
}

// Branch is a git branch and the commit it points to.
type Branch struct {
	Name     string
	CommitID string
}

// Client wraps the GitLab API for the listings the graph loader needs.
type Client struct {
	gitlab *gitlab.Client
}

const perPage = 100

// NewClient connects to the GitLab instance at baseURL. An empty token
// is accepted for anonymous read access.
func NewClient(baseURL, token string) (*Client, error) {
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}
	return &Client{gitlab: client}, nil
}

// Project fetches a snapshot project by its numeric id.
func (c *Client) Project(ctx context.Context, id int) (*Project, error) {
	project, _, err := c.gitlab.Projects.GetProject(id, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	p := &Project{
		ID:            project.ID,
		Path:          project.Path,
		WebURL:        project.WebURL,
		DefaultBranch: project.DefaultBranch,
	}
	if project.CreatedAt != nil {
		p.CreatedAt = *project.CreatedAt
	}
	return p, nil
}

// Commits lists every commit of the project's default branch.
func (c *Client) Commits(ctx context.Context, id int) ([]Commit, error) {
	opts := &gitlab.ListCommitsOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage, Page: 1},
	}
	var all []Commit
	for {
		commits, resp, err := c.gitlab.Commits.ListCommits(id, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list commits for project %d: %w", id, err)
		}
		for _, commit := range commits {
			converted := Commit{
				ID:             commit.ID,
				ShortID:        commit.ShortID,
				Title:          commit.Title,
				Message:        commit.Message,
				AuthorName:     commit.AuthorName,
				AuthorEmail:    commit.AuthorEmail,
				CommitterName:  commit.CommitterName,
				CommitterEmail: commit.CommitterEmail,
				ParentIDs:      commit.ParentIDs,
			}
			if commit.AuthoredDate != nil {
				converted.AuthoredDate = *commit.AuthoredDate
			}
			if commit.CommittedDate != nil {
				converted.CommittedDate = *commit.CommittedDate
			}
			all = append(all, converted)
		}
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// Tags lists every tag of the project.
func (c *Client) Tags(ctx context.Context, id int) ([]Tag, error) {
	opts := &gitlab.ListTagsOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage, Page: 1},
	}
	var all []Tag
	for {
		tags, resp, err := c.gitlab.Tags.ListTags(id, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list tags for project %d: %w", id, err)
		}
		for _, tag := range tags {
			converted := Tag{Name: tag.Name, Message: tag.Message}
			if tag.Commit != nil {
				converted.CommitID = tag.Commit.ID
			}
			all = append(all, converted)
		}
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// Branches lists every branch of the project.
func (c *Client) Branches(ctx context.Context, id int) ([]Branch, error) {
	opts := &gitlab.ListBranchesOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage, Page: 1},
	}
	var all []Branch
	for {
		branches, resp, err := c.gitlab.Branches.ListBranches(id, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list branches for project %d: %w", id, err)
		}
		for _, branch := range branches {
			converted := Branch{Name: branch.Name}
			if branch.Commit != nil {
				converted.CommitID = branch.Commit.ID
			}
			all = append(all, converted)
		}
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}
