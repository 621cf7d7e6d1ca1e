package classifier

import (
	"regexp"
	"strings"
)

// Safe length returned when quoted-reply extraction is inconclusive.
const maxExtractLength = 2000

var replyMarkers = []*regexp.Regexp{
	// "On Mon, 2 Jun 2025 at 10:15, Jane Doe <jane@acme.com> wrote:"
	regexp.MustCompile(`(?si)\bOn\s.{0,300}?\bwrote:`),
	regexp.MustCompile(`(?i)-----\s*Original Message\s*-----`),
	// Outlook style header block
	regexp.MustCompile(`(?mi)^From:\s.+\r?\n(Sent|Date):\s`),
	regexp.MustCompile(`(?mi)^_{10,}\s*$`),
}

var quotedLine = regexp.MustCompile(`(?m)^\s*>`)

// ExtractNewMessage strips quoted-reply boilerplate and returns only the new
// content of a reply body. It never fails: when nothing can be stripped the
// original body is returned truncated to a safe length.
func ExtractNewMessage(body string) string {
	if body == "" {
		return ""
	}

	stripped := body
	for _, marker := range replyMarkers {
		if loc := marker.FindStringIndex(stripped); loc != nil {
			stripped = stripped[:loc[0]]
		}
	}

	// Drop any trailing "> quoted" block that survived the markers
	if loc := quotedLine.FindStringIndex(stripped); loc != nil {
		stripped = stripped[:loc[0]]
	}

	stripped = strings.TrimSpace(stripped)
	if stripped != "" {
		return truncate(stripped, maxExtractLength)
	}

	return truncate(strings.TrimSpace(body), maxExtractLength)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
