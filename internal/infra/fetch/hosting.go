package fetch

import (
	"html"
	"regexp"
	"strings"
)

// maxCarry bounds how much unmatched text is kept between chunks.
const maxCarry = 4096

var anchorHref = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// HrefScanner looks for the first anchor tag in a stream of text chunks. An
// anchor split across chunk boundaries is still found.
type HrefScanner struct {
	buf   strings.Builder
	found string
}

// Feed appends a chunk and reports the href once an anchor has been seen.
func (s *HrefScanner) Feed(chunk string) (string, bool) {
	if s.found != "" {
		return s.found, true
	}

	s.buf.WriteString(chunk)
	text := s.buf.String()

	if m := anchorHref.FindStringSubmatch(text); m != nil {
		href := m[1]
		if href == "" {
			href = m[2]
		}
		href = html.UnescapeString(strings.TrimSpace(href))
		if href != "" {
			s.found = href
			return href, true
		}
	}

	// Keep only the tail that could still hold the start of an anchor.
	carry := text
	if i := strings.LastIndex(text, "<"); i >= 0 {
		carry = text[i:]
	} else {
		carry = ""
	}
	if len(carry) > maxCarry {
		carry = carry[len(carry)-maxCarry:]
	}
	s.buf.Reset()
	s.buf.WriteString(carry)
	return "", false
}
