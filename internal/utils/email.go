package utils

import (
	"regexp"
	"strings"
)

func UniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	unique := make([]string, 0, len(emails))

	for _, email := range emails {
		if _, exists := seen[email]; !exists {
			seen[email] = struct{}{}
			unique = append(unique, email)
		}
	}

	return unique
}

func NormalizeSubject(subject string) string {
	// Remove stacked reply/forward prefixes, case insensitive
	re := regexp.MustCompile(`(?i)^(re|fwd|fw|aw|sv|vs)(\[\d+\])?\s*:\s*`)
	normalized := strings.TrimSpace(subject)
	for re.MatchString(normalized) {
		normalized = strings.TrimSpace(re.ReplaceAllString(normalized, ""))
	}
	return normalized
}

// ExtractAddress pulls a bare address out of "Name <email@domain.com>" forms.
func ExtractAddress(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.Contains(raw, "<") && strings.Contains(raw, ">") {
		startIdx := strings.LastIndex(raw, "<") + 1
		endIdx := strings.LastIndex(raw, ">")
		if startIdx > 0 && endIdx > startIdx {
			raw = raw[startIdx:endIdx]
		}
	}

	return strings.ToLower(strings.TrimSpace(raw))
}

// ExtractDisplayName pulls the display name out of "Name <email@domain.com>"
// forms, stripping any surrounding quotes. Returns "" for bare addresses.
func ExtractDisplayName(raw string) string {
	raw = strings.TrimSpace(raw)

	idx := strings.LastIndex(raw, "<")
	if idx <= 0 {
		return ""
	}

	name := strings.TrimSpace(raw[:idx])
	name = strings.Trim(name, `"`)
	return strings.TrimSpace(name)
}

func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = ExtractAddress(email)

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}
