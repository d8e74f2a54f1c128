package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled gitignore rules. Match is safe to call
// concurrently with AddPattern.
type Matcher struct {
	rules []rule
	mu    sync.RWMutex
}

type rule struct {
	regex    *regexp.Regexp
	negation bool   // !pattern re-includes a path
	dirOnly  bool   // trailing / matches directories and their contents
	anchored bool   // leading / or internal / match from the base, not anywhere
	base     string // scope for nested .gitignore files
}

// New returns an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// AddPattern adds one gitignore pattern applying from the walk root.
func (m *Matcher) AddPattern(pattern string) {
	m.AddPatternWithBase(pattern, "")
}

// AddPatternWithBase adds a pattern that only applies to paths under
// base. Nested .gitignore files pass their directory here.
func (m *Matcher) AddPatternWithBase(pattern, base string) {
	r, ok := parseRule(pattern, base)
	if !ok {
		return
	}

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// parseRule interprets one gitignore line. ok is false for blank lines
// and comments.
func parseRule(line, base string) (rule, bool) {
	// A trailing "\ " keeps the space; detect before TrimSpace eats it
	keepTrailingSpace := strings.HasSuffix(line, `\ `)

	line = strings.TrimSpace(line)
	if line == "" {
		return rule{}, false
	}
	if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, `\#`) {
		return rule{}, false
	}

	r := rule{base: base}

	switch {
	case strings.HasPrefix(line, `\#`), strings.HasPrefix(line, `\!`):
		line = line[1:]
	case strings.HasPrefix(line, "!"):
		r.negation = true
		line = line[1:]
	}

	if keepTrailingSpace && strings.HasSuffix(line, `\`) {
		line = strings.TrimSuffix(line, `\`) + " "
	}

	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = line[1:]
	}

	// A slash anywhere in the pattern anchors it: "doc/frotz" means
	// /doc/frotz, not **/doc/frotz
	if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") && !strings.HasPrefix(line, "*") {
		r.anchored = true
	}

	r.regex = compilePattern(line)
	return r, true
}

// AddFromFile loads every pattern in a gitignore file, scoped to base.
func (m *Matcher) AddFromFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open gitignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.AddPatternWithBase(scanner.Text(), base)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read gitignore file: %w", err)
	}
	return nil
}

// Match reports whether path (slash or native separators, relative to
// the walk root) is ignored. Later rules win, so a negation after an
// ignore re-includes the path.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.matches(path, isDir) {
			ignored = !r.negation
		}
	}
	return ignored
}

// matches checks one rule. A directory-only pattern also matches the
// files inside the directory: "temp/" ignores "temp/file.md".
func (r rule) matches(path string, isDir bool) bool {
	path, ok := r.trimBase(path)
	if !ok {
		return false
	}

	parts := strings.Split(path, "/")

	if r.anchored {
		return r.matchFromRoot(path, parts, isDir)
	}
	if r.dirOnly {
		return r.matchDirAnywhere(parts, isDir)
	}

	// Try the basename, the whole path (for ** patterns), then every
	// component
	if r.regex.MatchString(parts[len(parts)-1]) || r.regex.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// trimBase scopes path to the rule's base directory. ok is false when
// the path lies outside the base.
func (r rule) trimBase(path string) (string, bool) {
	if r.base == "" {
		return path, true
	}
	if path == r.base {
		return filepath.Base(path), true
	}
	if rest, found := strings.CutPrefix(path, r.base+"/"); found {
		return rest, true
	}
	return "", false
}

// matchFromRoot handles anchored rules, which must match starting at
// the base rather than at any depth.
func (r rule) matchFromRoot(path string, parts []string, isDir bool) bool {
	if r.regex.MatchString(path) {
		if r.dirOnly {
			return isDir
		}
		return true
	}
	// Files under an anchored ignored directory
	if r.dirOnly {
		for i := range parts[:len(parts)-1] {
			if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
				return true
			}
		}
	}
	return false
}

// matchDirAnywhere handles unanchored directory-only rules, which may
// match a directory at any depth.
func (r rule) matchDirAnywhere(parts []string, isDir bool) bool {
	for i, part := range parts {
		if !r.regex.MatchString(part) {
			continue
		}
		if i == len(parts)-1 {
			return isDir
		}
		return true
	}
	return false
}

// compilePattern translates gitignore glob syntax into an anchored
// regular expression.
func compilePattern(pattern string) *regexp.Regexp {
	var b strings.Builder

	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch c {
		case '*':
			i = writeStar(&b, pattern, i)
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			i = writeClass(&b, pattern, i)
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		default:
			if strings.IndexByte(`.+^$(){}|`, c) >= 0 {
				b.WriteString(regexp.QuoteMeta(string(c)))
			} else {
				b.WriteByte(c)
			}
			i++
		}
	}

	return regexp.MustCompile("^" + b.String() + "$")
}

// writeStar emits the regex for a star run starting at pattern[i] and
// returns the index after it. "**/" spans any number of directories, a
// bare "**" at the start or after a slash crosses separators, and a
// single "*" stops at "/".
func writeStar(b *strings.Builder, pattern string, i int) int {
	rest := pattern[i:]
	switch {
	case strings.HasPrefix(rest, "**/"):
		b.WriteString("(?:.*/)?")
		return i + 3
	case strings.HasPrefix(rest, "**") && (i == 0 || pattern[i-1] == '/'):
		b.WriteString(".*")
		return i + 2
	default:
		b.WriteString("[^/]*")
		return i + 1
	}
}

// writeClass copies a [...] character class through unchanged, or
// escapes a lone "[" that never closes.
func writeClass(b *strings.Builder, pattern string, i int) int {
	if end := strings.IndexByte(pattern[i:], ']'); end > 0 {
		b.WriteString(pattern[i : i+end+1])
		return i + end + 1
	}
	b.WriteString(regexp.QuoteMeta("["))
	return i + 1
}
