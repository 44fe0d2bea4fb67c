// Package textprep cleans prompt text read from companion files before it is
// sent to a captioning backend.
package textprep

import (
	"regexp"
	"strings"
)

var (
	// weight markup like (tag:1.2) or [tag]
	weightPattern  = regexp.MustCompile(`:\s*-?\d+(\.\d+)?\s*\)`)
	bracketReplace = strings.NewReplacer("(", "", ")", "", "[", "", "]", "", "{", "", "}", "")
	escapeReplace  = strings.NewReplacer(`\(`, "(", `\)`, ")")
)

// Preprocess turns tag-list style prompt text into a clean comma-separated list:
// it drops weight markup and brackets, converts underscores to spaces,
// collapses whitespace, and removes empty and duplicate tags while keeping
// the first occurrence order.
func Preprocess(text string) string {
	text = escapeReplace.Replace(text)
	text = weightPattern.ReplaceAllString(text, ")")
	text = bracketReplace.Replace(text)
	text = strings.ReplaceAll(text, "_", " ")

	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	seen := make(map[string]struct{}, len(parts))
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.Join(strings.Fields(p), " ")
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return strings.Join(tags, ", ")
}
