// Package reconcile merges the three repository CSV sources into one
// canonical record per forge id and attaches package associations.
package reconcile

import (
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/droidgraph/droidgraph/internal/csvutil"
)

// Columns the mirror-repair and forge-import sources are allowed to
// overwrite. The original scrape never carries clone metadata.
var cloneKeys = []string{"clone_project_name", "clone_project_id"}

// Identity columns that must agree between the original scrape and the
// forge-import copy. Disagreement is logged, never fatal.
var identityKeys = []string{"full_name", "renamed_to", "not_found"}

// LatestRepoName resolves a repository row's legacy and current names.
//
// A renamed repository's current name is its rename target. A row that
// is neither renamed nor marked not-found keeps its original name. A
// not-found, not-renamed row is terminally unreachable and resolves to
// an empty current name.
func LatestRepoName(fullName, renamedTo, notFound string) (legacy, current string) {
	if renamedTo != "" {
		return fullName, renamedTo
	}
	if notFound != "TRUE" {
		return fullName, fullName
	}
	return fullName, ""
}

// Consolidate merges the original scrape, the forge-import copy and
// the mirror-repair log into one canonical row per repository id, in
// the original file's row order. The original row wins conflicting
// fields because later copies are known to corrupt non-ASCII text;
// clone metadata is the exception and is overwritten unconditionally.
// Matched pool entries are consumed; leftovers are reported afterwards
// via ReportUnmatched.
func Consolidate(original, gitlabImport, mirrored []csvutil.Row, pool Pool, log logrus.FieldLogger) []csvutil.Row {
	imports := indexBy(gitlabImport, "id")
	repairs := indexBy(mirrored, "github_full_name")

	if len(original) != len(gitlabImport) {
		log.Warnf("List lengths do not match: %d != %d", len(original), len(gitlabImport))
	}

	consolidated := make([]csvutil.Row, 0, len(original))
	for _, row := range original {
		combined := make(csvutil.Row, len(row)+len(cloneKeys)+2)
		for key, value := range row {
			combined[key] = value
		}

		id := row["id"]
		imported, ok := imports[id]
		if !ok {
			log.Warnf("ID %s is not in the import file", id)
		} else {
			for _, key := range identityKeys {
				if row[key] != imported[key] {
					log.Warnf("Column %s for row with ID %s differs: %q vs %q",
						key, id, row[key], imported[key])
				}
			}
			for _, key := range append(cloneKeys, "clone_status") {
				combined[key] = imported[key]
			}
			// The import file records the snapshot as a URL; only the
			// path name of the repository is kept.
			combined["clone_project_path"] = path.Base(imported["clone_project_url"])
		}

		legacy, current := LatestRepoName(row["full_name"], row["renamed_to"], row["not_found"])

		// Some snapshot repositories failed to clone at first and were
		// re-mirrored later; the repair log supersedes clone metadata.
		if repair, ok := lookupByName(repairs, current, legacy); ok {
			for _, key := range append(cloneKeys, "clone_project_path") {
				combined[key] = repair[key]
			}
			combined["clone_status"] = "Success"
		}

		if packages, ok := takeByName(pool, current, legacy); ok {
			combined["packages"] = strings.Join(packages, ",")
		} else {
			log.Warnf("No package for repository with ID %s: %s", id,
				nameSet(legacy, current))
		}

		if combined["clone_project_id"] == "" {
			log.Warnf("Repository %s does not have a clone ID: full_name: [%s], "+
				"not_found: [%s], renamed_to: [%s]",
				id, combined["full_name"], combined["not_found"], combined["renamed_to"])
		}

		consolidated = append(consolidated, combined)
	}
	return consolidated
}

// ReportUnmatched logs every association left in the pool after all
// repository rows were consumed. These are packages whose repository
// never appeared in the repository tables.
func ReportUnmatched(pool Pool, log logrus.FieldLogger) {
	if len(pool) == 0 {
		return
	}
	log.Warnf("%d repository names are left without a repository row", len(pool))
	for repo := range pool {
		packages, _ := pool.Get(repo)
		log.Infof("Not used: %s: %s", repo, strings.Join(packages, ", "))
	}
}

// Header extends the original file's header with the columns the
// consolidation adds, keeping the original column order.
func Header(originalHeader []string) []string {
	header := make([]string, len(originalHeader), len(originalHeader)+4)
	copy(header, originalHeader)
	seen := make(map[string]struct{}, len(header))
	for _, name := range header {
		seen[name] = struct{}{}
	}
	for _, name := range []string{"clone_project_name", "clone_project_id",
		"clone_project_path", "clone_status", "packages"} {
		if _, ok := seen[name]; !ok {
			header = append(header, name)
		}
	}
	return header
}

func indexBy(rows []csvutil.Row, key string) map[string]csvutil.Row {
	index := make(map[string]csvutil.Row, len(rows))
	for _, row := range rows {
		index[row[key]] = row
	}
	return index
}

// lookupByName tries the current name first, the legacy name second.
func lookupByName(index map[string]csvutil.Row, current, legacy string) (csvutil.Row, bool) {
	if current != "" {
		if row, ok := index[current]; ok {
			return row, true
		}
	}
	row, ok := index[legacy]
	return row, ok
}

// takeByName consumes the pool entry for the current name if present,
// falling back to the legacy name.
func takeByName(pool Pool, current, legacy string) ([]string, bool) {
	if current != "" {
		if packages, ok := pool.Take(current); ok {
			return packages, true
		}
	}
	return pool.Take(legacy)
}

func nameSet(legacy, current string) string {
	if current == "" || current == legacy {
		return legacy
	}
	return legacy + ", " + current
}
