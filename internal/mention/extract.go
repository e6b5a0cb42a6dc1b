// ABOUTME: Extraction of @handle mention candidates from post text.
// ABOUTME: Applies the handle length and alphabet rules before any registry lookup.

package mention

import (
	"regexp"
	"strings"
)

// Default handle length bounds.
const (
	DefaultMinLength = 3
	DefaultMaxLength = 16
)

// Candidate is one @handle occurrence. Start and End delimit the "@handle"
// text, including the @ sign.
type Candidate struct {
	Handle string
	Start  int
	End    int
}

// candidatePattern finds an @ followed by handle characters. The leading
// group rejects e-mail addresses, URL paths and token identifiers.
var candidatePattern = regexp.MustCompile(`(^|[^\w@/:.\[\\-])@([a-z0-9][a-z0-9.-]*)`)

// handleShape is the per-segment rule: each dot-separated part starts with a
// letter, ends with a letter or digit, and contains only lowercase letters,
// digits and hyphens.
var handleShape = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9](?:\.[a-z][a-z0-9-]*[a-z0-9])*$`)

// Extractor finds mention candidates under a length constraint.
type Extractor struct {
	minLen, maxLen int
}

// NewExtractor returns an extractor accepting handles of minLen..maxLen characters.
func NewExtractor(minLen, maxLen int) *Extractor {
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	if maxLen < minLen {
		maxLen = DefaultMaxLength
	}
	return &Extractor{minLen: minLen, maxLen: maxLen}
}

// Extract returns every candidate in document order. Handles inside code
// spans and code blocks are not candidates.
func (x *Extractor) Extract(text string) []Candidate {
	matches := candidatePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	code := codeSpans(text)

	var out []Candidate
	for _, m := range matches {
		handleStart, handleEnd := m[4], m[5]

		// A sentence-ending dot or hyphen is not part of the handle
		handle := strings.TrimRight(text[handleStart:handleEnd], ".-")
		handleEnd = handleStart + len(handle)

		// The next character must not continue a word, e.g. "@alice_b" or "@Alice"
		if handleEnd < len(text) && isWordByte(text[handleEnd]) {
			continue
		}
		if !x.Valid(handle) || inCode(code, handleStart) {
			continue
		}
		out = append(out, Candidate{
			Handle: handle,
			Start:  handleStart - 1,
			End:    handleEnd,
		})
	}
	return out
}

// Valid reports whether handle satisfies the length and alphabet rules.
func (x *Extractor) Valid(handle string) bool {
	if len(handle) < x.minLen || len(handle) > x.maxLen {
		return false
	}
	return handleShape.MatchString(handle)
}

// Unique returns the distinct handles of cands in first-seen order.
func Unique(cands []Candidate) []string {
	seen := make(map[string]struct{}, len(cands))
	var out []string
	for _, c := range cands {
		if _, ok := seen[c.Handle]; ok {
			continue
		}
		seen[c.Handle] = struct{}{}
		out = append(out, c.Handle)
	}
	return out
}

func isWordByte(b byte) bool {
	return b == '_' || b == '@' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
