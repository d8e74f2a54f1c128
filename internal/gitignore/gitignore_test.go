package gitignore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== Pattern Matching =====

func TestMatcher_Match_Patterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		ignored bool
	}{
		// Bare names match at any depth
		{"exact name", "notes.txt", "notes.txt", false, true},
		{"exact name nested", "notes.txt", "docs/archive/notes.txt", false, true},
		{"different name", "notes.txt", "other.txt", false, false},

		// Wildcards
		{"extension glob", "*.tmp", "scratch.tmp", false, true},
		{"extension glob nested", "*.tmp", "docs/scratch.tmp", false, true},
		{"extension glob miss", "*.tmp", "scratch.md", false, false},
		{"prefix glob", "draft*", "draft-q3.md", false, true},
		{"single char", "v?.md", "v1.md", false, true},
		{"single char not slash", "a?b", "a/b", false, false},
		{"char class", "report[0-9].md", "report7.md", false, true},
		{"char class miss", "report[0-9].md", "reportX.md", false, false},

		// Double star
		{"doublestar prefix", "**/build", "x/y/build", true, true},
		{"doublestar prefix at root", "**/build", "build", true, true},
		{"doublestar suffix", "archive/**", "archive/2025/old.md", false, true},
		{"doublestar middle", "docs/**/draft.md", "docs/a/b/draft.md", false, true},

		// Anchoring
		{"rooted matches root", "/build", "build", true, true},
		{"rooted not nested", "/build", "src/build", true, false},
		{"internal slash anchors", "docs/internal", "docs/internal", true, true},
		{"internal slash not nested", "docs/internal", "x/docs/internal", true, false},

		// Directory-only
		{"dir pattern matches dir", "drafts/", "drafts", true, true},
		{"dir pattern matches contents", "drafts/", "drafts/wip.md", false, true},
		{"dir pattern at depth", "drafts/", "docs/drafts/wip.md", false, true},
		{"dir pattern ignores file", "drafts/", "drafts", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.ignored, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Match_NegationReincludes(t *testing.T) {
	m := New()
	m.AddPattern("*.md")
	m.AddPattern("!README.md")

	assert.True(t, m.Match("guide.md", false))
	assert.False(t, m.Match("README.md", false), "negation after ignore wins")
	assert.False(t, m.Match("docs/README.md", false))
}

func TestMatcher_Match_LastRuleWins(t *testing.T) {
	m := New()
	m.AddPattern("!keep.log")
	m.AddPattern("*.log")

	// The ignore comes after the negation, so it applies
	assert.True(t, m.Match("keep.log", false))
}

func TestMatcher_AddPattern_SkipsCommentsAndBlanks(t *testing.T) {
	m := New()
	m.AddPattern("")
	m.AddPattern("   ")
	m.AddPattern("# just a comment")

	assert.False(t, m.Match("anything.md", false))
}

func TestMatcher_AddPattern_EscapedHash(t *testing.T) {
	m := New()
	m.AddPattern(`\#notes.md`)

	assert.True(t, m.Match("#notes.md", false))
}

func TestMatcher_AddPattern_EscapedTrailingSpace(t *testing.T) {
	m := New()
	m.AddPattern(`name\ `)

	assert.True(t, m.Match("name ", false))
	assert.False(t, m.Match("name", false))
}

func TestMatcher_Match_NativeSeparators(t *testing.T) {
	m := New()
	m.AddPattern("drafts/")

	// Windows-style input still matches
	assert.True(t, m.Match(filepath.Join("drafts", "wip.md"), false))
}

// ===== Files and Nesting =====

func TestMatcher_AddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	content := "*.tmp\ndrafts/\n# comment\n!drafts/final.md\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m := New()
	require.NoError(t, m.AddFromFile(path, ""))

	assert.True(t, m.Match("a.tmp", false))
	assert.True(t, m.Match("drafts/wip.md", false))
	assert.False(t, m.Match("drafts/final.md", false))
	assert.False(t, m.Match("guide.md", false))
}

func TestMatcher_AddFromFile_Missing(t *testing.T) {
	m := New()
	err := m.AddFromFile(filepath.Join(t.TempDir(), "absent"), "")
	assert.Error(t, err)
}

func TestMatcher_NestedBaseScopesPatterns(t *testing.T) {
	// Given: a pattern contributed by docs/.gitignore
	m := New()
	m.AddPatternWithBase("*.pdf", "docs")

	// Then: it applies under docs/ only
	assert.True(t, m.Match("docs/manual.pdf", false))
	assert.True(t, m.Match("docs/sub/manual.pdf", false))
	assert.False(t, m.Match("manual.pdf", false))
	assert.False(t, m.Match("assets/manual.pdf", false))
}

// ===== Concurrency =====

func TestMatcher_ConcurrentMatchAndAdd(t *testing.T) {
	m := New()
	m.AddPattern("*.tmp")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Match("docs/file.tmp", false)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			m.AddPattern("extra.md")
		}
	}()
	wg.Wait()

	assert.True(t, m.Match("file.tmp", false))
}
