//go:build ignore

// Package main generates a synthetic document corpus for crawl and search
// benchmarking. Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
//
// The corpus mimics a team documentation tree: meeting notes and design
// docs in Markdown, runbooks in plain text, and status reports as minimal
// DOCX archives, spread across per-team directories.
package main

import (
	"archive/zip"
	"bytes"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var meetingTemplate = `# %s Sync %s

Attendees: %s, %s, %s

## Discussion

- The %s needs another pass before the %s freeze.
- %s is blocked on the %s review.
- %s volunteered to own the %s follow-up.

## Decisions

The team agreed to move the %s to the next sprint and keep the %s
scope unchanged. The %s stays behind the feature flag for now.

## Action Items

- [ ] %s: draft the %s proposal
- [ ] %s: update the %s runbook
- [ ] %s: file the capacity request for the %s
`

var designTemplate = `# RFC: %s

Status: draft
Owner: %s team

## Summary

This document proposes the %s. The current approach does not scale past
the %s, and the on-call load has grown every quarter since the %s
shipped.

## Motivation

Support keeps fielding tickets about the %s. Every workaround adds load
to the %s, and the %s team spends a day a week on manual cleanup.

## Design

The %s moves behind the %s. Writes go through a queue so the %s can
absorb bursts; reads stay on the existing path until the migration
completes.

| Component | Change |
|-----------|--------|
| %s | fronted by the new queue |
| %s | read path unchanged |
| %s | retired after cutover |

## Alternatives Considered

Scaling the %s vertically was rejected: it buys a quarter at best and
doubles the cost. Doing nothing leaves the %s as the single point of
failure.

## Rollout

Dark-launch behind a flag, shadow traffic for two weeks, then cut over
one %s at a time.
`

var runbookTemplate = `%s RUNBOOK

Scope: %s
Owner: %s team

Steps:

1. Check the %s dashboard for anomalies.
2. Drain traffic away from the affected %s.
3. Roll the %s back to the previous release.
4. Verify the %s is healthy before closing the incident.

Escalation: page the %s on-call if step 3 fails twice.

Last reviewed: %s
`

var reportParagraphs = []string{
	"Weekly status for the %s team.",
	"The %s moved to staging; rollout to production is planned once the %s review closes.",
	"Two incidents this week, both traced to the %s. A fix is in review.",
	"Hiring: one offer out for the %s role.",
	"Next week the team focuses on the %s and the deferred %s cleanup.",
}

// Word pools for generating realistic document content
var (
	topics = []string{
		"billing migration", "search relevance", "onboarding flow",
		"retention policy", "incident process", "quota enforcement",
		"backup rotation", "access review", "cache invalidation",
		"schema versioning", "rate limiting", "vendor consolidation",
		"capacity planning", "deploy pipeline", "audit logging",
	}
	teams = []string{
		"platform", "billing", "search", "infra", "growth", "support",
	}
	names = []string{
		"Alex", "Sam", "Priya", "Jordan", "Dana", "Miguel", "Chen", "Noor",
	}
	systems = []string{
		"ingest pipeline", "API gateway", "job queue", "primary database",
		"edge cache", "auth service", "metrics collector", "export worker",
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	// Create per-team subdirectories
	for _, team := range teams {
		for _, sub := range []string{"meetings", "rfcs", "runbooks", "reports"} {
			if err := os.MkdirAll(filepath.Join(*outputDir, team, sub), 0755); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating subdirectory: %v\n", err)
				os.Exit(1)
			}
		}
	}

	fmt.Printf("Generating %d documents in %s...\n", *numFiles, *outputDir)

	// Distribute documents across types
	meetingFiles := *numFiles * 40 / 100 // 40% meeting notes
	designFiles := *numFiles * 25 / 100  // 25% design docs
	runbookFiles := *numFiles * 20 / 100 // 20% runbooks
	reportFiles := *numFiles - meetingFiles - designFiles - runbookFiles // ~15% DOCX reports

	generated := 0

	for i := 0; i < meetingFiles; i++ {
		if err := generateMeetingNotes(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating meeting notes %d: %v\n", i, err)
			continue
		}
		generated++
	}

	for i := 0; i < designFiles; i++ {
		if err := generateDesignDoc(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating design doc %d: %v\n", i, err)
			continue
		}
		generated++
	}

	for i := 0; i < runbookFiles; i++ {
		if err := generateRunbook(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating runbook %d: %v\n", i, err)
			continue
		}
		generated++
	}

	for i := 0; i < reportFiles; i++ {
		if err := generateReport(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating report %d: %v\n", i, err)
			continue
		}
		generated++
	}

	fmt.Printf("Generated %d documents successfully.\n", generated)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

// titleCase upper-cases the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func randomDate(rng *rand.Rand) string {
	return fmt.Sprintf("2025-%02d-%02d", 1+rng.Intn(12), 1+rng.Intn(28))
}

func generateMeetingNotes(rng *rand.Rand, index int) error {
	team := pick(rng, teams)
	date := randomDate(rng)

	content := fmt.Sprintf(meetingTemplate,
		titleCase(team), date,
		pick(rng, names), pick(rng, names), pick(rng, names),
		pick(rng, topics), date,
		pick(rng, names), pick(rng, topics),
		pick(rng, names), pick(rng, topics),
		pick(rng, topics), pick(rng, topics), pick(rng, topics),
		pick(rng, names), pick(rng, topics),
		pick(rng, names), pick(rng, systems),
		pick(rng, names), pick(rng, systems),
	)

	filename := filepath.Join(*outputDir, team, "meetings", fmt.Sprintf("%s-sync-%d.md", date, index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateDesignDoc(rng *rand.Rand, index int) error {
	team := pick(rng, teams)
	topic := pick(rng, topics)

	content := fmt.Sprintf(designTemplate,
		titleCase(topic), team,
		topic,
		pick(rng, systems), pick(rng, topics),
		topic,
		pick(rng, systems), team,
		topic, pick(rng, systems), pick(rng, systems),
		pick(rng, systems), pick(rng, systems), pick(rng, systems),
		pick(rng, systems), pick(rng, systems),
		pick(rng, systems),
	)

	slug := strings.ReplaceAll(topic, " ", "-")
	filename := filepath.Join(*outputDir, team, "rfcs", fmt.Sprintf("%s-%d.md", slug, index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateRunbook(rng *rand.Rand, index int) error {
	team := pick(rng, teams)
	system := pick(rng, systems)

	content := fmt.Sprintf(runbookTemplate,
		strings.ToUpper(system),
		system, team,
		system, system, system, system,
		team,
		randomDate(rng),
	)

	slug := strings.ReplaceAll(system, " ", "-")
	filename := filepath.Join(*outputDir, team, "runbooks", fmt.Sprintf("%s-%d.txt", slug, index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateReport(rng *rand.Rand, index int) error {
	team := pick(rng, teams)
	title := fmt.Sprintf("%s Status %s", titleCase(team), randomDate(rng))

	pool := make([]string, 0, len(topics)+len(systems))
	pool = append(pool, topics...)
	pool = append(pool, systems...)

	paragraphs := make([]string, 0, len(reportParagraphs))
	for _, tpl := range reportParagraphs {
		filled := tpl
		for strings.Contains(filled, "%s") {
			filled = strings.Replace(filled, "%s", pick(rng, pool), 1)
		}
		paragraphs = append(paragraphs, filled)
	}
	paragraphs[0] = fmt.Sprintf("Weekly status for the %s team.", team)

	filename := filepath.Join(*outputDir, team, "reports", fmt.Sprintf("status-%d.docx", index))
	return writeDocx(filename, title, paragraphs)
}

// writeDocx assembles a minimal WordprocessingML archive: enough for any
// conformant reader, nothing more.
func writeDocx(path, title string, paragraphs []string) error {
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + xmlEscape(p) + `</w:t></w:r></w:p>`)
	}

	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
			`</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
			`</Relationships>`,
		"docProps/core.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
			` xmlns:dc="http://purl.org/dc/elements/1.1/">` +
			`<dc:title>` + xmlEscape(title) + `</dc:title>` +
			`</cp:coreProperties>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<w:body>` + body.String() + `</w:body></w:document>`,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "docProps/core.xml", "word/document.xml"} {
		f, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := f.Write([]byte(entries[name])); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
