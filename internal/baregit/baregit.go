// Package baregit runs content searches against bare git repositories,
// the form the mirror forge stores snapshots in on disk.
package baregit

import (
	"fmt"
	"os/exec"
	"strings"
)

// Match is one grep hit: the matched line content and the path of the
// file it occurred in.
type Match struct {
	Line string
	Path string
}

// Repository is a bare git repository on the local filesystem.
type Repository struct {
	gitDir string
}

// Open returns a handle for the bare repository at gitDir. The
// directory is not validated until the first command runs.
func Open(gitDir string) *Repository {
	return &Repository{gitDir: gitDir}
}

// Grep searches the tree at ref for pattern, restricted to files
// matching pathspec. No matches is not an error.
func (r *Repository) Grep(pattern, ref, pathspec string) ([]Match, error) {
	cmd := exec.Command("git", "--git-dir", r.gitDir, "grep", "-e", pattern, ref, "--", pathspec)
	output, err := cmd.Output()
	if err != nil {
		// git grep exits 1 when nothing matched.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("git grep in %s: %w", r.gitDir, err)
	}
	return parseGrepOutput(string(output)), nil
}

// parseGrepOutput splits `ref:path:content` lines into matches. The
// content may itself contain colons, so only the first two separators
// count.
func parseGrepOutput(output string) []Match {
	var matches []Match
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		matches = append(matches, Match{Path: parts[1], Line: parts[2]})
	}
	return matches
}
