package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/docsmcp/internal/gitignore"
)

// gitignoreCacheSize caps the number of cached gitignore matchers so a
// long-running watch over a large tree cannot grow without bound.
const gitignoreCacheSize = 1000

// scanBuffer is the result channel depth; extraction workers drain it.
const scanBuffer = 256

// Scanner discovers document files under a root directory.
type Scanner struct {
	// gitignoreCache holds parsed matchers keyed by directory.
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan walks the root and streams matching document files. The channel
// closes when the walk finishes; a walk-level failure arrives as the
// final result's Error.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}
	absRoot, err := resolveRoot(opts.RootDir)
	if err != nil {
		return nil, err
	}

	results := make(chan ScanResult, scanBuffer)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, results)
	}()
	return results, nil
}

// resolveRoot turns the configured root into a verified absolute
// directory path.
func resolveRoot(rootDir string) (string, error) {
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return "", fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root path is not a directory: %s", absRoot)
	}
	return absRoot, nil
}

// walk performs the directory traversal.
func (s *Scanner) walk(ctx context.Context, absRoot string, opts *ScanOptions, results chan<- ScanResult) {
	filter := s.newFilter(absRoot, opts)

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			return nil // Unreadable entries are skipped, not fatal
		}

		relPath, rerr := filepath.Rel(absRoot, path)
		if rerr != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if s.shouldExcludeDir(relPath, opts) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if !filter.allowsExt(relPath) {
			return nil
		}

		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		if !filter.admits(relPath, path, info.Size()) {
			return nil
		}

		file := &FileInfo{
			Path:    relPath,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		select {
		case results <- ScanResult{File: file}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// ShouldIndex reports whether a single file would be picked up by a
// scan with the same options. The watch coordinator uses this to filter
// filesystem events before touching the store.
func (s *Scanner) ShouldIndex(absPath string, opts *ScanOptions) bool {
	if opts == nil {
		opts = &ScanOptions{}
	}
	absRoot, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return false
	}
	relPath, err := filepath.Rel(absRoot, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return false
	}

	filter := s.newFilter(absRoot, opts)
	if !filter.allowsExt(relPath) {
		return false
	}

	// Directory components must survive the same exclusions the walk
	// applies when pruning
	if dir := filepath.Dir(relPath); dir != "." && s.shouldExcludeDir(dir, opts) {
		return false
	}

	info, err := os.Stat(absPath)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return filter.admits(relPath, absPath, info.Size())
}

// fileFilter bundles the per-scan state the admission checks need, so
// the walk and single-file checks share one code path.
type fileFilter struct {
	s       *Scanner
	absRoot string
	opts    *ScanOptions
	allowed map[string]bool
	maxSize int64
}

func (s *Scanner) newFilter(absRoot string, opts *ScanOptions) *fileFilter {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &fileFilter{
		s:       s,
		absRoot: absRoot,
		opts:    opts,
		allowed: extensionSet(opts.Extensions),
		maxSize: maxSize,
	}
}

// allowsExt reports whether the extension alone qualifies the file.
func (f *fileFilter) allowsExt(relPath string) bool {
	return f.allowed[normalizedExt(relPath)]
}

// admits runs the content checks on a file that already passed the
// extension test: exclusion patterns, gitignore, size cap, binary
// sniff.
func (f *fileFilter) admits(relPath, absPath string, size int64) bool {
	if f.s.shouldExcludeFile(relPath, f.absRoot, f.opts) {
		return false
	}
	if size > f.maxSize {
		slog.Debug("skipping oversized file",
			slog.String("path", relPath),
			slog.Int64("size", size))
		return false
	}
	// A .txt or .md full of null bytes is some binary wearing the
	// wrong extension
	if plainTextExtensions[normalizedExt(relPath)] && isBinaryFile(absPath) {
		return false
	}
	return true
}

// shouldExcludeDir checks a directory against built-in and configured
// exclusions. Matching any parent component excludes the subtree.
func (s *Scanner) shouldExcludeDir(relPath string, opts *ScanOptions) bool {
	for _, set := range [][]string{defaultExcludeDirs, opts.ExcludePatterns} {
		for _, pattern := range set {
			if matchDirPattern(relPath, pattern) {
				return true
			}
		}
	}
	return false
}

// shouldExcludeFile checks a file against sensitive patterns, built-in
// and configured exclusions, and gitignore.
func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *ScanOptions) bool {
	baseName := filepath.Base(relPath)
	for _, set := range [][]string{sensitiveFilePatterns, defaultExcludeFiles, opts.ExcludePatterns} {
		for _, pattern := range set {
			if matchFilePattern(baseName, relPath, pattern) {
				return true
			}
		}
	}
	return opts.RespectGitignore && s.isGitignored(relPath, absRoot)
}

// matchDirPattern matches a directory path against an exclusion
// pattern.
func matchDirPattern(relPath, pattern string) bool {
	switch {
	case strings.HasPrefix(pattern, "**/"):
		// **/name/** excludes the named directory at any depth
		return hasComponent(relPath, strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**"))
	case strings.HasSuffix(pattern, "/**"):
		// name/** matches the directory itself and everything under it
		return underDir(relPath, strings.TrimSuffix(pattern, "/**"))
	default:
		return underDir(relPath, pattern)
	}
}

// matchFilePattern matches a file against an exclusion pattern. Glob
// metacharacters are handled by filepath.Match against the base name;
// name-only comparisons are case-insensitive because Office lock files
// and credential dumps show up in every capitalization.
func matchFilePattern(baseName, relPath, pattern string) bool {
	sep := string(filepath.Separator)
	switch {
	case strings.HasPrefix(pattern, "**/"):
		// **/rest applies rest at any depth: a glob matches the base
		// name, a bare name matches any path component
		rest := strings.TrimPrefix(pattern, "**/")
		if strings.ContainsAny(rest, "*?[") {
			return globMatch(rest, baseName)
		}
		return hasComponent(relPath, rest)
	case strings.HasSuffix(pattern, "/**"):
		// dir/** subtree patterns
		return strings.HasPrefix(relPath, strings.TrimSuffix(pattern, "/**")+sep)
	case strings.Contains(pattern, sep) && strings.ContainsAny(pattern, "*?["):
		// dir/glob: the directory must match exactly, the name by glob
		return filepath.Dir(relPath) == filepath.Dir(pattern) &&
			globMatch(filepath.Base(pattern), baseName)
	case strings.ContainsAny(pattern, "*?["):
		return globMatch(pattern, baseName)
	default:
		return baseName == pattern
	}
}

// underDir reports whether relPath is the directory itself or inside
// it.
func underDir(relPath, dir string) bool {
	return relPath == dir || strings.HasPrefix(relPath, dir+string(filepath.Separator))
}

// hasComponent reports whether any component of relPath equals name.
func hasComponent(relPath, name string) bool {
	return slices.Contains(strings.Split(relPath, string(filepath.Separator)), name)
}

// globMatch runs a case-insensitive filepath.Match against a name.
func globMatch(pattern, name string) bool {
	ok, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(name))
	return err == nil && ok
}

// isBinaryFile sniffs the first 512 bytes for null bytes.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// isGitignored checks the root .gitignore plus every nested .gitignore
// on the path to the file.
func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	if m := s.matcherFor(absRoot, ""); m != nil && m.Match(relPath, false) {
		return true
	}

	dir := filepath.Dir(relPath)
	if dir == "." {
		return false
	}
	parts := strings.Split(dir, string(filepath.Separator))
	for i := range parts {
		base := filepath.Join(parts[:i+1]...)
		m := s.matcherFor(filepath.Join(absRoot, base), base)
		if m != nil && m.Match(relPath, false) {
			return true
		}
	}
	return false
}

// matcherFor returns the cached matcher for a directory, parsing its
// .gitignore on first use. Returns nil when the directory has no
// .gitignore.
func (s *Scanner) matcherFor(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	m, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return m
	}

	m = parseGitignore(filepath.Join(dir, ".gitignore"), base)
	if m == nil {
		return nil
	}
	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, m)
	s.cacheMu.Unlock()
	return m
}

// parseGitignore loads one .gitignore file. Returns nil when the file
// is absent or unreadable.
func parseGitignore(path, base string) *gitignore.Matcher {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	m := gitignore.New()
	if err := m.AddFromFile(path, base); err != nil {
		return nil
	}
	return m
}

// InvalidateGitignoreCache drops all cached matchers. The watch
// coordinator calls this when a .gitignore file changes.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

// Directories never worth descending into.
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.docsmcp/**",
	"**/.aws/**",
	"**/.gcp/**",
	"**/.azure/**",
	"**/.ssh/**",
}

// Files excluded regardless of extension. Office applications drop
// lock files that carry the real document's extension.
var defaultExcludeFiles = []string{
	"**/~$*",
	"**/.~lock.*",
}

// Sensitive files that are never indexed, even when they carry an
// allowed extension.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
