// ABOUTME: Stateless text normalization and merge for streamed content fragments.
// ABOUTME: Preserves sentence and paragraph boundaries while joining sub-sentence chunks.

package render

import (
	"regexp"
	"strings"
	"unicode"
)

const paragraphSep = "\n\n"

var intraLineSpace = regexp.MustCompile(`[ \t]+`)

// Normalize prepares a content fragment for merging: blank lines and tool
// status lines are dropped, runs of horizontal whitespace collapse to a single
// space, line breaks are preserved. Returns "" if nothing renderable remains.
func Normalize(fragment string) string {
	if fragment == "" {
		return ""
	}

	var kept []string
	for _, line := range strings.Split(fragment, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ToolLinePrefix) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	if len(kept) == 0 {
		return ""
	}

	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))
	if cleaned == "" {
		return ""
	}
	return intraLineSpace.ReplaceAllString(cleaned, " ")
}

// Merge combines the accumulated answer text with a normalized fragment.
// Both sides are treated as paragraph sequences: only the last paragraph of
// accumulated and the first paragraph of fragment merge inline, the rest
// concatenate verbatim.
func Merge(accumulated, fragment string) string {
	if accumulated == "" {
		return fragment
	}

	existing := strings.Split(accumulated, paragraphSep)
	incoming := strings.Split(fragment, paragraphSep)

	if len(existing) > 1 || len(incoming) > 1 {
		merged := make([]string, 0, len(existing)+len(incoming))
		merged = append(merged, existing[:len(existing)-1]...)
		merged = append(merged, mergeInline(existing[len(existing)-1], incoming[0]))
		merged = append(merged, incoming[1:]...)

		out := merged[:0]
		for _, p := range merged {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return strings.Join(out, paragraphSep)
	}

	return mergeInline(accumulated, fragment)
}

// mergeInline joins two paragraph halves. A sentence-final rune on the left
// starts the right on a new line; anything else is treated as a continued
// token stream and joined with a single space.
func mergeInline(left, right string) string {
	left = strings.TrimRightFunc(left, unicode.IsSpace)
	right = strings.TrimLeftFunc(right, unicode.IsSpace)
	if left == "" {
		return right
	}
	if right == "" {
		return left
	}
	switch left[len(left)-1] {
	case '.', '?', '!', ':':
		return left + "\n" + right
	}
	return left + " " + right
}
