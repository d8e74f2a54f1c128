package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/Aman-CERP/docsmcp/internal/errors"
)

// DOCX is a zip archive; the body text lives in word/document.xml as w:t
// runs inside w:r elements inside w:p paragraphs. encoding/xml matches on
// local element names, so the tagged structs below work regardless of the
// namespace prefix the producing application chose.

type wordDocument struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordRun struct {
	Text []wordText `xml:"t"`
}

type wordText struct {
	Value string `xml:",chardata"`
}

func extractDocx(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.New(errors.ErrCodeMalformedArchive, "docx is not a valid zip archive", err)
	}

	var content string
	found := false
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return nil, errors.ExtractError("failed to read word/document.xml", err)
		}
		if content, err = parseWordXML(raw); err != nil {
			return nil, err
		}
		found = true
		break
	}
	if !found {
		return nil, errors.New(errors.ErrCodeMalformedArchive, "docx archive has no word/document.xml", nil)
	}

	return &Result{
		Title:    docxCoreTitle(zr),
		Content:  content,
		Metadata: map[string]any{"format": "docx"},
	}, nil
}

// parseWordXML joins run text within each paragraph and paragraphs with
// newlines. Paragraphs without visible text are dropped.
func parseWordXML(data []byte) (string, error) {
	var doc wordDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", errors.New(errors.ErrCodeMalformedXML, "failed to parse word/document.xml", err)
	}

	var sb strings.Builder
	for _, para := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Text {
				line.WriteString(t.Value)
			}
		}
		if text := strings.TrimSpace(line.String()); text != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}

type coreProperties struct {
	Title string `xml:"title"`
}

// docxCoreTitle reads the document title from docProps/core.xml. Returns
// empty when the archive has no core properties or no title, letting the
// filename fallback apply.
func docxCoreTitle(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != "docProps/core.xml" {
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return ""
		}
		var core coreProperties
		if err := xml.Unmarshal(raw, &core); err != nil {
			return ""
		}
		return strings.TrimSpace(core.Title)
	}
	return ""
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
