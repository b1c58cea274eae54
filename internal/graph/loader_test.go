package graph

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidgraph/droidgraph/internal/baregit"
	"github.com/droidgraph/droidgraph/internal/csvutil"
	"github.com/droidgraph/droidgraph/internal/forge"
	"github.com/droidgraph/droidgraph/internal/reconcile"
)

// fakeDB records every query and serves canned results in order.
type fakeDB struct {
	queries []string
	params  []map[string]any
	results [][]map[string]any
}

func (f *fakeDB) ExecuteQuery(_ context.Context, query string, params map[string]any) ([]map[string]any, error) {
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)
	if len(f.results) == 0 {
		return nil, nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result, nil
}

type fakeForge struct {
	projects map[int]*forge.Project
	commits  map[int][]forge.Commit
	tags     map[int][]forge.Tag
	branches map[int][]forge.Branch
}

func (f *fakeForge) Project(_ context.Context, id int) (*forge.Project, error) {
	return f.projects[id], nil
}

func (f *fakeForge) Commits(_ context.Context, id int) ([]forge.Commit, error) {
	return f.commits[id], nil
}

func (f *fakeForge) Tags(_ context.Context, id int) ([]forge.Tag, error) {
	return f.tags[id], nil
}

func (f *fakeForge) Branches(_ context.Context, id int) ([]forge.Branch, error) {
	return f.branches[id], nil
}

type fakeSearcher struct {
	matches map[string][]baregit.Match // keyed by pathspec
}

func (f *fakeSearcher) Grep(_, _, pathspec string) ([]baregit.Match, error) {
	return f.matches[pathspec], nil
}

func repoRow(id, fullName, projectID string) csvutil.Row {
	return csvutil.Row{
		"id":               id,
		"full_name":        fullName,
		"renamed_to":       "",
		"not_found":        "FALSE",
		"owner_login":      strings.SplitN(fullName, "/", 2)[0],
		"name":             strings.SplitN(fullName, "/", 2)[1],
		"clone_status":     "Success",
		"clone_project_id": projectID,
	}
}

func testProject(id int) *forge.Project {
	return &forge.Project{
		ID:            id,
		Path:          "snapshot",
		WebURL:        "http://gitlab.local/gitlab/snapshot",
		CreatedAt:     time.Unix(1500000000, 0),
		DefaultBranch: "master",
	}
}

func newTestLoader(db Querier, fg Forge) (*Loader, *logrustest.Hook) {
	logger, hook := logrustest.NewNullLogger()
	loader := NewLoader(db, fg, "/repos", logger)
	loader.openRepo = func(string) Searcher { return &fakeSearcher{} }
	return loader, hook
}

func TestLoadRepository_MergesByForgeID(t *testing.T) {
	db := &fakeDB{}
	loader, _ := newTestLoader(db, &fakeForge{})

	row := repoRow("123", "owner/repo", "9")
	require.NoError(t, loader.LoadRepository(context.Background(), row, testProject(9), []string{"pkg.a"}))
	require.NoError(t, loader.LoadRepository(context.Background(), row, testProject(9), []string{"pkg.a"}))

	// Loading the same row twice issues the same identity-keyed merge,
	// never a bare create.
	require.Len(t, db.queries, 2)
	for _, query := range db.queries {
		assert.Contains(t, query, "MERGE (repo:GitHubRepository {id: $id})")
		assert.NotContains(t, query, "CREATE")
	}
	assert.Equal(t, "123", db.params[0]["id"])
	assert.Equal(t, []string{"pkg.a"}, db.params[0]["packages"])

	props, ok := db.params[0]["props"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "http://gitlab.local/gitlab/snapshot", props["snapshot"])
	assert.Equal(t, int64(1500000000), props["snapshotTimestamp"])
}

func TestLoadRepository_WarnsWhenNoAppMatched(t *testing.T) {
	db := &fakeDB{results: [][]map[string]any{
		{{"id": "123", "linked": int64(0)}},
	}}
	loader, hook := newTestLoader(db, &fakeForge{})

	row := repoRow("123", "owner/repo", "9")
	require.NoError(t, loader.LoadRepository(context.Background(), row, testProject(9), nil))

	require.NotEmpty(t, hook.Entries)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Contains(t, entry.Message, "without IMPLEMENTED_BY edges")
}

func TestLoadCommits_ParentStubs(t *testing.T) {
	db := &fakeDB{}
	loader, _ := newTestLoader(db, &fakeForge{})

	commits := []forge.Commit{{
		ID:             "abc123",
		ShortID:        "abc",
		Title:          "initial",
		Message:        "initial commit",
		AuthorName:     "Alice",
		AuthorEmail:    "alice@example.com",
		CommitterName:  "Alice",
		CommitterEmail: "alice@example.com",
		AuthoredDate:   time.Unix(1400000000, 0),
		CommittedDate:  time.Unix(1400000100, 0),
		// Parents not yet visited; both must be merged as stubs.
		ParentIDs: []string{"p1", "p2"},
	}}

	require.NoError(t, loader.LoadCommits(context.Background(), "123", commits))

	require.Len(t, db.queries, 3)
	assert.Contains(t, db.queries[0], "MERGE (commit:Commit {id: $commit.id})")
	assert.Contains(t, db.queries[0], "MERGE (author:Contributor {email: $author.email})")
	assert.Contains(t, db.queries[1], "MERGE (p:Commit {id: $parent})")
	assert.Equal(t, "p1", db.params[1]["parent"])
	assert.Equal(t, "p2", db.params[2]["parent"])
	assert.Equal(t, "abc123", db.params[1]["child"])
}

func TestLoadCommits_SharedContributorMergesByEmail(t *testing.T) {
	db := &fakeDB{}
	loader, _ := newTestLoader(db, &fakeForge{})

	commits := []forge.Commit{
		{ID: "c1", AuthorEmail: "alice@example.com", CommitterEmail: "alice@example.com"},
		{ID: "c2", AuthorEmail: "alice@example.com", CommitterEmail: "bob@example.com"},
	}
	require.NoError(t, loader.LoadCommits(context.Background(), "123", commits))

	require.Len(t, db.queries, 2)
	author, ok := db.params[0]["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", author["email"])
}

func TestLoadRepositories_ForkPassRunsLast(t *testing.T) {
	db := &fakeDB{}
	fg := &fakeForge{
		projects: map[int]*forge.Project{9: testProject(9), 10: testProject(10)},
	}
	loader, _ := newTestLoader(db, fg)

	// Repository A records B as its parent and is processed first,
	// before B's node exists.
	rowA := repoRow("1", "owner/fork", "9")
	rowA["parent_id"] = "2"
	rowB := repoRow("2", "owner/parent", "10")
	pool := reconcile.Pool{"owner/fork": {"pkg.a": {}}, "owner/parent": {"pkg.b": {}}}

	require.NoError(t, loader.LoadRepositories(context.Background(), []csvutil.Row{rowA, rowB}, pool))

	require.NotEmpty(t, db.queries)
	last := db.queries[len(db.queries)-1]
	assert.Contains(t, last, "MERGE (fork)-[:FORKS]->(parent)")
	assert.Contains(t, last, "fork.parentId = parent.id OR fork.sourceId = parent.id")

	// Both repository nodes were merged before the fork pass.
	var repoMerges int
	for _, query := range db.queries[:len(db.queries)-1] {
		if strings.Contains(query, "MERGE (repo:GitHubRepository {id: $id})") {
			repoMerges++
		}
	}
	assert.Equal(t, 2, repoMerges)
}

func TestLoadRepositories_SkipsFailedClones(t *testing.T) {
	db := &fakeDB{}
	loader, hook := newTestLoader(db, &fakeForge{})

	row := repoRow("1", "owner/repo", "9")
	row["clone_status"] = "Failed"

	require.NoError(t, loader.LoadRepositories(context.Background(), []csvutil.Row{row}, make(reconcile.Pool)))

	// Only the fork pass ran.
	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "FORKS")

	var skipped bool
	for _, entry := range hook.Entries {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, "Clone status") {
			skipped = true
		}
	}
	assert.True(t, skipped)
}

func TestAddImplementationPaths_MergesSortedDedupedPaths(t *testing.T) {
	db := &fakeDB{}
	loader, _ := newTestLoader(db, &fakeForge{})

	searcher := &fakeSearcher{matches: map[string][]baregit.Match{
		"*AndroidManifest.xml": {
			{Line: "1", Path: "a/b.xml"},
			{Line: "5", Path: "a/b.xml"},
			{Line: "2", Path: "c/d.xml"},
		},
	}}

	require.NoError(t, loader.AddImplementationPaths(
		context.Background(), "123", "pkg.a", "master", searcher))

	// Gradle and maven found nothing, so only one edge update runs.
	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "[r:IMPLEMENTED_BY]")
	assert.Contains(t, db.queries[0], "SET r += $props")

	props, ok := db.params[0]["props"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"a/b.xml", "c/d.xml"}, props["manifestPaths"])
	assert.Equal(t, "pkg.a", db.params[0]["package"])
	assert.Equal(t, "123", db.params[0]["repoId"])
}

func TestEnsureApp_WithoutSnapshotStillMergesAppNode(t *testing.T) {
	db := &fakeDB{}
	loader, hook := newTestLoader(db, &fakeForge{})

	require.NoError(t, loader.EnsureApp(context.Background(), "com.missing", t.TempDir()))

	// No GooglePlayPage properties to merge, but the App node and the
	// PUBLISHED_AT link are still created.
	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "MERGE (app:App {id: $package})")
	assert.Contains(t, db.queries[0], "MERGE (app)-[:PUBLISHED_AT]->(page)")

	var warned bool
	for _, entry := range hook.Entries {
		if strings.Contains(entry.Message, "Cannot create GooglePlayPage node") {
			warned = true
		}
	}
	assert.True(t, warned)
}
