package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/droidgraph/droidgraph/internal/csvutil"
)

// Pool is the association pool: repository name to the set of package
// names known to live there. Matched entries are consumed so leftovers
// can be reported after reconciliation.
type Pool map[string]map[string]struct{}

// Add records that packageName lives in the repository named repo.
func (p Pool) Add(repo, packageName string) {
	set, ok := p[repo]
	if !ok {
		set = make(map[string]struct{})
		p[repo] = set
	}
	set[packageName] = struct{}{}
}

// Take returns the packages associated with repo, sorted, and removes
// the entry so it cannot match a second repository row.
func (p Pool) Take(repo string) ([]string, bool) {
	set, ok := p[repo]
	if !ok {
		return nil, false
	}
	delete(p, repo)
	packages := make([]string, 0, len(set))
	for pkg := range set {
		packages = append(packages, pkg)
	}
	sort.Strings(packages)
	return packages, true
}

// Get returns the packages associated with repo without consuming the
// entry.
func (p Pool) Get(repo string) ([]string, bool) {
	set, ok := p[repo]
	if !ok {
		return nil, false
	}
	packages := make([]string, 0, len(set))
	for pkg := range set {
		packages = append(packages, pkg)
	}
	sort.Strings(packages)
	return packages, true
}

// ParseRepoToPackages parses a headerless CSV file whose first column
// is a package name and whose second column is the repository that
// implements it.
func ParseRepoToPackages(r io.Reader) (Pool, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	pool := make(Pool)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return pool, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read package list: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		pool.Add(record[1], record[0])
	}
}

// ParsePackagesToRepos parses a headered CSV file with columns
// `package` and `all_repos`, the latter a comma-joined repository
// list.
func ParsePackagesToRepos(r io.Reader) (map[string][]string, error) {
	rows, _, err := csvutil.ReadRows(r)
	if err != nil {
		return nil, err
	}
	packages := make(map[string][]string, len(rows))
	for _, row := range rows {
		packages[row["package"]] = strings.Split(row["all_repos"], ",")
	}
	return packages, nil
}

// InvertMapping turns a package-to-repositories mapping into an
// association pool keyed by repository.
func InvertMapping(packages map[string][]string) Pool {
	pool := make(Pool)
	for pkg, repos := range packages {
		for _, repo := range repos {
			pool.Add(repo, pkg)
		}
	}
	return pool
}
