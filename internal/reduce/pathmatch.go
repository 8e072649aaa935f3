package reduce

import "strings"

// MatchFilePattern reports whether relPath matches a single spec.md §6
// `--file` pattern. Adapted from pkg/cowgit/pathrewrite.go's
// GitIgnore.matchPattern/matchWildcard (gitignore-style glob matching),
// generalized from "files to skip rewriting" to "files eligible for
// reduction": an exact path, a directory prefix (pattern ending in
// "/"), or a "*"/"*.ext"/"prefix*" wildcard all match the same way.
func MatchFilePattern(pattern, relPath string) bool {
	if strings.HasSuffix(pattern, "/") {
		dir := strings.TrimSuffix(pattern, "/")
		return relPath == dir || strings.HasPrefix(relPath, dir+"/")
	}
	if strings.Contains(pattern, "*") {
		return matchFileWildcard(pattern, relPath)
	}
	return relPath == pattern || strings.HasPrefix(relPath, pattern+"/")
}

func matchFileWildcard(pattern, path string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(path, pattern[1:])
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(path, pattern[:len(pattern)-1])
	}
	parts := strings.SplitN(pattern, "*", 2)
	if len(parts) == 2 {
		return strings.HasPrefix(path, parts[0]) && strings.HasSuffix(path, parts[1])
	}
	return false
}

// MatchAnyFilePattern reports whether relPath matches at least one of
// patterns, used to turn spec.md §6's repeatable `--file <relpath>`
// flag into a single eligibility predicate.
func MatchAnyFilePattern(patterns []string, relPath string) bool {
	for _, p := range patterns {
		if MatchFilePattern(p, relPath) {
			return true
		}
	}
	return false
}
