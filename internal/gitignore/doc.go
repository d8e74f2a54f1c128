// Package gitignore implements gitignore pattern matching for the
// document scanner, following https://git-scm.com/docs/gitignore.
//
// Supported syntax: name and wildcard patterns (*, ?, character
// classes), ** globs, rooted patterns (/build), directory-only
// patterns (build/), negations (!keep.md), and nested .gitignore
// files scoped to a base directory:
//
//	m := gitignore.New()
//	m.AddFromFile("/repo/.gitignore", "")
//	m.AddFromFile("/repo/docs/.gitignore", "docs")
//
//	if m.Match("docs/draft.md", false) {
//	    // skipped by the crawl
//	}
//
// Matching is safe for concurrent use; the scanner shares cached
// matchers across walk goroutines.
package gitignore
