package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Aman-CERP/docsmcp/internal/errors"
)

// extractPDF pulls plain text from every page. Pages that fail to decode
// are skipped rather than failing the document; the same goes for font
// warnings, which the reader reports without aborting. The parser panics
// on some malformed files, so the whole extraction runs under recover.
func extractPDF(ctx context.Context, data []byte) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.New(errors.ErrCodePDFUnreadable,
				fmt.Sprintf("pdf parser panic: %v", r), nil)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.New(errors.ErrCodePDFUnreadable, "failed to open pdf", err)
	}

	totalPages := reader.NumPage()
	fonts := make(map[string]*pdf.Font)

	var sb strings.Builder
	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue // Unreadable page, keep the rest
		}
		if text = strings.TrimSpace(text); text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(text)
		}
	}

	return &Result{
		Content: sb.String(),
		Metadata: map[string]any{
			"format":     "pdf",
			"page_count": totalPages,
		},
	}, nil
}
