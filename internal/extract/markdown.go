package extract

import (
	"regexp"
	"strings"
)

// atxHeadingRe matches an ATX heading line; trailing closing hashes are
// stripped along with surrounding whitespace.
var atxHeadingRe = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t]*#*[ \t]*$`)

// extractMarkdown keeps the raw markdown as content and takes the title
// from the first heading.
func extractMarkdown(data []byte) (*Result, error) {
	res, err := extractPlainText(data)
	if err != nil {
		return nil, err
	}
	res.Metadata["format"] = "markdown"

	if m := atxHeadingRe.FindStringSubmatch(res.Content); m != nil {
		res.Title = strings.TrimSpace(m[1])
	}
	return res, nil
}
