package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Aman-CERP/docsmcp/internal/errors"
)

// slideSeparator joins the text of consecutive slides.
const slideSeparator = "\n\n---\n\n"

// pptxTitleMaxLen caps how long a first line may be to serve as the title.
const pptxTitleMaxLen = 100

// slideNameRe matches slide parts inside the archive. Zip paths always use
// forward slashes.
var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type slideFile struct {
	num  int
	file *zip.File
}

func extractPptx(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.New(errors.ErrCodeMalformedArchive, "pptx is not a valid zip archive", err)
	}

	slides := collectSlides(zr)
	if len(slides) == 0 {
		return nil, errors.New(errors.ErrCodeMalformedArchive, "pptx archive has no slides", nil)
	}

	var parts []string
	for _, slide := range slides {
		raw, err := readZipFile(slide.file)
		if err != nil {
			return nil, errors.ExtractError("failed to read "+slide.file.Name, err)
		}
		runs, err := collectTextRuns(raw)
		if err != nil {
			return nil, err
		}
		// Slides without any text (image-only, blank) are omitted entirely
		if len(runs) > 0 {
			parts = append(parts, strings.Join(runs, " "))
		}
	}

	content := strings.Join(parts, slideSeparator)

	res := &Result{
		Content: content,
		Metadata: map[string]any{
			"format":      "pptx",
			"slide_count": len(slides),
		},
	}

	// The first line of the deck, usually the title slide heading, makes a
	// reasonable document title unless it is suspiciously long.
	if line := firstNonEmptyLine(content); line != "" && len(line) < pptxTitleMaxLen {
		res.Title = line
	}

	return res, nil
}

// collectSlides finds slide parts and orders them by slide number. Zip
// entry order and lexicographic order both put slide10 before slide2, so
// the numeric suffix is what gets sorted.
func collectSlides(zr *zip.Reader) []slideFile {
	var slides []slideFile
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	return slides
}

// collectTextRuns walks the slide XML token stream and gathers the text of
// every a:t element. Runs nest at arbitrary depth under shapes, tables and
// group shapes, so the walk matches on the element name alone rather than
// modeling the full schema.
func collectTextRuns(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		runs   []string
		inText bool
		text   strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(errors.ErrCodeMalformedXML, "failed to parse slide XML", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
				text.Reset()
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "t" && inText {
				inText = false
				if s := text.String(); strings.TrimSpace(s) != "" {
					runs = append(runs, s)
				}
			}
		}
	}
	return runs, nil
}
