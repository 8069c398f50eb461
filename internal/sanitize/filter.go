package sanitize

import "strings"

// Filter screens review comments. Clean returns the sanitized text and
// whether anything was replaced. Instances are constructed and injected
// rather than shared through package state, so tests and callers can
// supply their own word lists.
type Filter interface {
	Clean(text string) (string, bool)
}

type wordFilter struct {
	words map[string]struct{}
}

// DefaultBlockedWords is the fallback list used when no custom list is
// configured.
var DefaultBlockedWords = []string{
	"damn", "hell", "crap", "scam", "fraud",
}

// NewWordFilter creates a Filter replacing any of the given words
// (case-insensitive, whole tokens) with asterisks.
func NewWordFilter(words []string) Filter {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &wordFilter{words: set}
}

func (f *wordFilter) Clean(text string) (string, bool) {
	if len(f.words) == 0 || text == "" {
		return text, false
	}

	fields := strings.Fields(text)
	filtered := false
	for i, field := range fields {
		token := strings.ToLower(strings.Trim(field, ".,!?;:\"'()"))
		if _, blocked := f.words[token]; blocked {
			fields[i] = strings.Repeat("*", len(field))
			filtered = true
		}
	}

	if !filtered {
		return text, false
	}
	return strings.Join(fields, " "), true
}
