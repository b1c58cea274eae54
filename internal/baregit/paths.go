package baregit

import "sort"

// FindPaths reduces grep matches to the sorted list of file paths,
// removing adjacent duplicates only. Matches of the same file arrive
// contiguously once sorted, so a full set is not built; the search
// tool's output ordering is accepted as-is.
func FindPaths(matches []Match) []string {
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, m.Path)
	}
	sort.Strings(paths)

	var unique []string
	for _, p := range paths {
		if len(unique) == 0 || unique[len(unique)-1] != p {
			unique = append(unique, p)
		}
	}
	return unique
}
