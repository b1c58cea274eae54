package graph

import (
	"context"
	"fmt"

	"github.com/droidgraph/droidgraph/internal/baregit"
)

// A build-file convention: the grep pattern locating a package in the
// tree, the pathspec restricting the search, and the edge property the
// found paths are stored under.
type pathConvention struct {
	property string
	pattern  func(packageName string) string
	pathspec string
}

var pathConventions = []pathConvention{
	{
		property: "manifestPaths",
		pattern:  func(pkg string) string { return fmt.Sprintf(`package="%s"`, pkg) },
		pathspec: "*AndroidManifest.xml",
	},
	{
		property: "gradleConfigPaths",
		pattern:  func(pkg string) string { return fmt.Sprintf(`applicationId *.%s.`, pkg) },
		pathspec: "*build.gradle",
	},
	{
		property: "mavenConfigPaths",
		pattern:  func(pkg string) string { return fmt.Sprintf(`<groupId>%s<\/groupId>`, pkg) },
		pathspec: "*pom.xml",
	},
}

// AddImplementationPaths greps the repository snapshot for the files
// that declare packageName under each build-system convention and
// stores the found paths on the IMPLEMENTED_BY edge. Properties are
// merged onto the edge, never replacing what is already there.
func (l *Loader) AddImplementationPaths(ctx context.Context, repoID, packageName, ref string, git Searcher) error {
	for _, convention := range pathConventions {
		matches, err := git.Grep(convention.pattern(packageName), ref, convention.pathspec)
		if err != nil {
			return fmt.Errorf("search %s for %s: %w", convention.pathspec, packageName, err)
		}
		paths := baregit.FindPaths(matches)
		if len(paths) == 0 {
			continue
		}
		l.log.Infof("Found %s: %v", convention.property, paths)
		if err := l.addEdgeProperties(ctx, repoID, packageName,
			map[string]any{convention.property: paths}); err != nil {
			return err
		}
	}
	return nil
}

// addEdgeProperties merges properties onto the IMPLEMENTED_BY edge
// between an app and a repository.
func (l *Loader) addEdgeProperties(ctx context.Context, repoID, packageName string, props map[string]any) error {
	_, err := l.db.ExecuteQuery(ctx, `
		MATCH (:App {id: $package})-[r:IMPLEMENTED_BY]->(:GitHubRepository {id: $repoId})
		SET r += $props
	`, map[string]any{
		"package": packageName,
		"repoId":  repoID,
		"props":   props,
	})
	if err != nil {
		return fmt.Errorf("add edge properties for %s: %w", packageName, err)
	}
	return nil
}
