package runs

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	invalidChars   = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// NormalizeRunName sanitizes a user-chosen run name: trim, collapse
// whitespace runs to single underscores, strip everything outside
// [A-Za-z0-9_-]. Returns "" when nothing survives, meaning "no custom name"
// and the server-assigned id is used instead.
func NormalizeRunName(raw string) string {
	prepared := whitespaceRuns.ReplaceAllString(strings.TrimSpace(raw), "_")
	return invalidChars.ReplaceAllString(prepared, "")
}

// UniqueRunName appends _1, _2, ... to base until the result collides with
// none of the existing ids. An empty base stays empty.
func UniqueRunName(base string, existing []string) string {
	if base == "" {
		return ""
	}
	taken := make(map[string]bool, len(existing))
	for _, id := range existing {
		taken[id] = true
	}
	name := base
	for counter := 1; taken[name]; counter++ {
		name = fmt.Sprintf("%s_%d", base, counter)
	}
	return name
}
