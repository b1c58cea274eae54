package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.Database)
	assert.Equal(t, "/var/opt/gitlab/git-data/repositories/gitlab", cfg.GitLab.ReposDir)
	assert.Equal(t, 10, cfg.GitHub.RateLimit)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "droidgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
neo4j:
  uri: bolt://graph:7687
  database: apps
gitlab:
  url: http://gitlab.local
  repos_dir: /srv/repos
github:
  rate_limit: 2
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "apps", cfg.Neo4j.Database)
	assert.Equal(t, "neo4j", cfg.Neo4j.User, "unset keys keep their defaults")
	assert.Equal(t, "/srv/repos", cfg.GitLab.ReposDir)
	assert.Equal(t, 2, cfg.GitHub.RateLimit)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "droidgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("neo4j:\n  uri: bolt://file:7687\n"), 0o600))

	t.Setenv("NEO4J_URI", "bolt://env:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("GITLAB_TOKEN", "glpat-test")
	t.Setenv("GITHUB_RATE_LIMIT", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt://env:7687", cfg.Neo4j.URI)
	assert.Equal(t, "secret", cfg.Neo4j.Password)
	assert.Equal(t, "glpat-test", cfg.GitLab.Token)
	assert.Equal(t, 5, cfg.GitHub.RateLimit)
}

func TestLoad_BadRateLimitIgnored(t *testing.T) {
	t.Setenv("GITHUB_RATE_LIMIT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.GitHub.RateLimit)
}
