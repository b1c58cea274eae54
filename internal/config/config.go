// Package config loads pipeline configuration from a YAML file and
// the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the endpoints the pipeline stages talk to.
type Config struct {
	Neo4j  Neo4jConfig  `mapstructure:"neo4j"`
	GitLab GitLabConfig `mapstructure:"gitlab"`
	GitHub GitHubConfig `mapstructure:"github"`
}

// Neo4jConfig locates the graph database.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// GitLabConfig locates the mirror forge and its on-disk repositories.
type GitLabConfig struct {
	URL      string `mapstructure:"url"`
	Token    string `mapstructure:"token"`
	ReposDir string `mapstructure:"repos_dir"`
}

// GitHubConfig configures the metadata fetcher.
type GitHubConfig struct {
	Token     string `mapstructure:"token"`
	RateLimit int    `mapstructure:"rate_limit"` // requests per second
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
		GitLab: GitLabConfig{
			URL:      "http://localhost",
			ReposDir: "/var/opt/gitlab/git-data/repositories/gitlab",
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
	}
}

// Load reads configuration from the optional YAML file at path, then
// applies environment overrides. A missing config file is not an
// error.
func Load(path string) (*Config, error) {
	// .env files are a convenience for unattended runs; missing files
	// are fine.
	godotenv.Load(".env.local", ".env")

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("neo4j", cfg.Neo4j)
	v.SetDefault("gitlab", cfg.GitLab)
	v.SetDefault("github", cfg.GitHub)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("droidgraph")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.User = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	}
	if database := os.Getenv("NEO4J_DATABASE"); database != "" {
		cfg.Neo4j.Database = database
	}
	if url := os.Getenv("GITLAB_URL"); url != "" {
		cfg.GitLab.URL = url
	}
	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		cfg.GitLab.Token = token
	}
	if dir := os.Getenv("GITLAB_REPOS_DIR"); dir != "" {
		cfg.GitLab.ReposDir = dir
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if limit := os.Getenv("GITHUB_RATE_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			cfg.GitHub.RateLimit = n
		}
	}
}
