package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/droidgraph/droidgraph/internal/baregit"
	"github.com/droidgraph/droidgraph/internal/csvutil"
	"github.com/droidgraph/droidgraph/internal/forge"
	"github.com/droidgraph/droidgraph/internal/playstore"
	"github.com/droidgraph/droidgraph/internal/reconcile"
)

// Forge lists snapshot repositories and their git history.
type Forge interface {
	Project(ctx context.Context, id int) (*forge.Project, error)
	Commits(ctx context.Context, id int) ([]forge.Commit, error)
	Tags(ctx context.Context, id int) ([]forge.Tag, error)
	Branches(ctx context.Context, id int) ([]forge.Branch, error)
}

// Searcher greps a git tree for content matches.
type Searcher interface {
	Grep(pattern, ref, pathspec string) ([]baregit.Match, error)
}

// Loader writes the app/repository graph. Repositories are processed
// one at a time; fork edges are linked in a second pass once every
// repository node exists.
type Loader struct {
	db       Querier
	forge    Forge
	reposDir string
	openRepo func(gitDir string) Searcher
	log      logrus.FieldLogger
}

// NewLoader creates a loader that reads snapshot repositories from fg
// and greps their bare git copies under reposDir.
func NewLoader(db Querier, fg Forge, reposDir string, log logrus.FieldLogger) *Loader {
	return &Loader{
		db:       db,
		forge:    fg,
		reposDir: reposDir,
		openRepo: func(gitDir string) Searcher { return baregit.Open(gitDir) },
		log:      log,
	}
}

// EnsureApp merges the GooglePlayPage and App nodes for one package
// and links them. A package without any details snapshot still gets
// its App node; only the page node is skipped.
func (l *Loader) EnsureApp(ctx context.Context, packageName, detailsDir string) error {
	page, err := playstore.ParsePlayPage(packageName, detailsDir, l.log)
	if err != nil {
		return err
	}
	if page == nil {
		l.log.WithField("package", packageName).
			Warn("Cannot create GooglePlayPage node")
	} else {
		_, err = l.db.ExecuteQuery(ctx, `
			MERGE (page:GooglePlayPage {docId: $docId})
			SET page += $props
		`, map[string]any{"docId": packageName, "props": page.Properties()})
		if err != nil {
			return fmt.Errorf("merge GooglePlayPage %s: %w", packageName, err)
		}
	}

	_, err = l.db.ExecuteQuery(ctx, `
		MERGE (page:GooglePlayPage {docId: $package})
		MERGE (app:App {id: $package})
		MERGE (app)-[:PUBLISHED_AT]->(page)
	`, map[string]any{"package": packageName})
	if err != nil {
		return fmt.Errorf("merge App %s: %w", packageName, err)
	}
	return nil
}

// AddAppData ensures App and GooglePlayPage nodes exist for every
// package in the association pool. Runs independently of repository
// processing.
func (l *Loader) AddAppData(ctx context.Context, pool reconcile.Pool, detailsDir string) error {
	for repo := range pool {
		packages, _ := pool.Get(repo)
		l.log.WithField("repository", repo).
			Infof("Add GooglePlayPage and App nodes for packages: %v", packages)
		for _, packageName := range packages {
			if err := l.EnsureApp(ctx, packageName, detailsDir); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadRepository merges the repository node and fans out IMPLEMENTED_BY
// edges from every matched App node in a single graph write. With no
// matching apps the node is still created, without edges; that case is
// logged.
func (l *Loader) LoadRepository(ctx context.Context, row csvutil.Row, project *forge.Project, packages []string) error {
	props := repositoryProperties(row, project)
	records, err := l.db.ExecuteQuery(ctx, `
		MERGE (repo:GitHubRepository {id: $id})
		SET repo += $props
		WITH repo
		OPTIONAL MATCH (app:App) WHERE app.id IN $packages
		FOREACH (a IN CASE WHEN app IS NULL THEN [] ELSE [app] END |
			MERGE (a)-[:IMPLEMENTED_BY]->(repo))
		RETURN repo.id AS id, count(app) AS linked
	`, map[string]any{
		"id":       row["id"],
		"props":    props,
		"packages": packages,
	})
	if err != nil {
		return fmt.Errorf("merge repository %s: %w", row["id"], err)
	}

	if len(records) > 0 {
		if linked, ok := records[0]["linked"].(int64); ok && linked == 0 {
			l.log.WithField("repository", row["full_name"]).
				Warn("Repository node created without IMPLEMENTED_BY edges")
		}
	}
	return nil
}

// repositoryProperties formats a canonical repository row and its
// snapshot project as node properties.
func repositoryProperties(row csvutil.Row, project *forge.Project) map[string]any {
	return map[string]any{
		"id":                row["id"],
		"owner":             row["owner_login"],
		"name":              row["name"],
		"snapshot":          project.WebURL,
		"snapshotTimestamp": project.CreatedAt.Unix(),
		"description":       row["description"],
		"createdAt":         row["created_at"],
		"forksCount":        row["forks_count"],
		"stargazersCount":   row["stargazers_count"],
		"subscribersCount":  row["subscribers_count"],
		"watchersCount":     row["watchers_count"],
		"networkCount":      row["network_count"],
		"ownerType":         row["owner_type"],
		"parentId":          row["parent_id"],
		"sourceId":          row["source_id"],
	}
}

// LoadCommits merges Commit and Contributor nodes for a repository.
// Contributors merge by email so the same person across commits is a
// single node. Parent edges merge the parent by hash only, so parents
// referenced before being visited exist as stubs until their own data
// arrives.
func (l *Loader) LoadCommits(ctx context.Context, repoID string, commits []forge.Commit) error {
	for _, commit := range commits {
		_, err := l.db.ExecuteQuery(ctx, `
			MATCH (repo:GitHubRepository {id: $repoId})
			MERGE (commit:Commit {id: $commit.id})
			ON CREATE SET commit = $commit
			ON MATCH SET commit += $commit
			MERGE (author:Contributor {email: $author.email})
			ON CREATE SET author = $author
			ON MATCH SET author += $author
			MERGE (committer:Contributor {email: $committer.email})
			ON CREATE SET committer = $committer
			ON MATCH SET committer += $committer
			MERGE (commit)-[:BELONGS_TO]->(repo)
			MERGE (author)-[a:AUTHORS]->(commit)
			SET a.timestamp = $authoredDate
			MERGE (committer)-[c:COMMITS]->(commit)
			SET c.timestamp = $committedDate
		`, map[string]any{
			"repoId": repoID,
			"commit": map[string]any{
				"id":       commit.ID,
				"short_id": commit.ShortID,
				"title":    commit.Title,
				"message":  commit.Message,
			},
			"author": map[string]any{
				"email": commit.AuthorEmail,
				"name":  commit.AuthorName,
			},
			"committer": map[string]any{
				"email": commit.CommitterEmail,
				"name":  commit.CommitterName,
			},
			"authoredDate":  commit.AuthoredDate.Unix(),
			"committedDate": commit.CommittedDate.Unix(),
		})
		if err != nil {
			return fmt.Errorf("merge commit %s: %w", commit.ID, err)
		}

		for _, parent := range commit.ParentIDs {
			_, err := l.db.ExecuteQuery(ctx, `
				MATCH (c:Commit {id: $child})
				MERGE (p:Commit {id: $parent})
				MERGE (c)-[:PARENT]->(p)
			`, map[string]any{"child": commit.ID, "parent": parent})
			if err != nil {
				return fmt.Errorf("merge parent %s of commit %s: %w", parent, commit.ID, err)
			}
		}
	}
	return nil
}

// LoadTags merges Tag nodes linked to a repository and the commit they
// point to. The commit may be a stub at this point.
func (l *Loader) LoadTags(ctx context.Context, repoID string, tags []forge.Tag) error {
	for _, tag := range tags {
		_, err := l.db.ExecuteQuery(ctx, `
			MATCH (repo:GitHubRepository {id: $repoId})
			MERGE (commit:Commit {id: $commitHash})
			MERGE (tag:Tag {name: $name})-[:BELONGS_TO]->(repo)
			SET tag.message = $message
			MERGE (tag)-[:POINTS_TO]->(commit)
		`, map[string]any{
			"repoId":     repoID,
			"commitHash": tag.CommitID,
			"name":       tag.Name,
			"message":    tag.Message,
		})
		if err != nil {
			return fmt.Errorf("merge tag %s: %w", tag.Name, err)
		}
	}
	return nil
}

// LoadBranches merges Branch nodes linked to a repository and the
// commit they point to.
func (l *Loader) LoadBranches(ctx context.Context, repoID string, branches []forge.Branch) error {
	for _, branch := range branches {
		_, err := l.db.ExecuteQuery(ctx, `
			MATCH (repo:GitHubRepository {id: $repoId})
			MERGE (commit:Commit {id: $commitHash})
			MERGE (branch:Branch {name: $name})-[:BELONGS_TO]->(repo)
			MERGE (branch)-[:POINTS_TO]->(commit)
		`, map[string]any{
			"repoId":     repoID,
			"commitHash": branch.CommitID,
			"name":       branch.Name,
		})
		if err != nil {
			return fmt.Errorf("merge branch %s: %w", branch.Name, err)
		}
	}
	return nil
}

// LinkForks adds FORKS edges between repository nodes whose recorded
// parent or source id matches another repository node. Deferred to a
// single pass after all repositories are loaded because the parent
// node may not exist while the fork's own row is processed.
func (l *Loader) LinkForks(ctx context.Context) error {
	_, err := l.db.ExecuteQuery(ctx, `
		MATCH (fork:GitHubRepository), (parent:GitHubRepository)
		WHERE fork.parentId = parent.id OR fork.sourceId = parent.id
		MERGE (fork)-[:FORKS]->(parent)
	`, nil)
	if err != nil {
		return fmt.Errorf("link forks: %w", err)
	}
	return nil
}

// LoadRepositories runs the full repository sequence for every
// canonical row: repository node with app fan-out, commit/tag/branch
// history from the forge, build-file path properties from the bare git
// copy, and finally the fork-edge pass.
func (l *Loader) LoadRepositories(ctx context.Context, rows []csvutil.Row, pool reconcile.Pool) error {
	for _, row := range rows {
		if row["clone_status"] != "Success" {
			l.log.Warnf("Project %s does not exist. Clone status: %s",
				row["full_name"], row["clone_status"])
			continue
		}

		_, current := reconcile.LatestRepoName(row["full_name"], row["renamed_to"], row["not_found"])
		packages := findPackageNames(pool, row)
		l.log.WithFields(logrus.Fields{"repository": current, "packages": packages}).
			Info("Create repository info")

		projectID, err := strconv.Atoi(row["clone_project_id"])
		if err != nil {
			return fmt.Errorf("repository %s: invalid clone project id %q: %w",
				row["id"], row["clone_project_id"], err)
		}
		project, err := l.forge.Project(ctx, projectID)
		if err != nil {
			return err
		}

		if err := l.LoadRepository(ctx, row, project, packages); err != nil {
			return err
		}

		commits, err := l.forge.Commits(ctx, projectID)
		if err != nil {
			return err
		}
		if err := l.LoadCommits(ctx, row["id"], commits); err != nil {
			return err
		}

		branches, err := l.forge.Branches(ctx, projectID)
		if err != nil {
			return err
		}
		if err := l.LoadBranches(ctx, row["id"], branches); err != nil {
			return err
		}

		tags, err := l.forge.Tags(ctx, projectID)
		if err != nil {
			return err
		}
		if err := l.LoadTags(ctx, row["id"], tags); err != nil {
			return err
		}

		gitDir := filepath.Join(l.reposDir, project.Path+".git")
		searcher := l.openRepo(gitDir)
		for _, packageName := range packages {
			if err := l.AddImplementationPaths(ctx, row["id"], packageName,
				project.DefaultBranch, searcher); err != nil {
				return err
			}
		}
	}

	return l.LinkForks(ctx)
}

// findPackageNames resolves the packages associated with a repository
// row, trying the current name before the legacy name. The pool is not
// consumed here; `consolidate` already reported the leftovers.
func findPackageNames(pool reconcile.Pool, row csvutil.Row) []string {
	legacy, current := reconcile.LatestRepoName(row["full_name"], row["renamed_to"], row["not_found"])
	if current != "" {
		if packages, ok := pool.Get(current); ok {
			return packages
		}
	}
	packages, _ := pool.Get(legacy)
	return packages
}
