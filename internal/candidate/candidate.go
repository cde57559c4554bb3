// Package candidate narrows document text down to sentences that plausibly
// describe a problem or opportunity. It is a cheap precision filter in front
// of the LLM: false negatives are acceptable, false positives are scored out
// later.
package candidate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Keywords mark a sentence as a candidate. Matching is a case-insensitive
// substring test.
var Keywords = []string{
	"problem", "challenge", "gap", "bottleneck", "limitation",
	"risk", "shortage", "fail", "difficulty", "threat", "opportunity",
	"demand", "need", "lack", "unable", "struggle", "barrier", "issue", "concern",
}

// sentenceEnd matches terminal punctuation followed by whitespace. The
// punctuation stays with the preceding sentence.
var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// Selector filters sentences by length window and keyword presence.
type Selector struct {
	MinLength int
	MaxLength int
}

// New creates a Selector with an inclusive [min, max] character window.
func New(minLength, maxLength int) *Selector {
	return &Selector{MinLength: minLength, MaxLength: maxLength}
}

// SplitSentences splits text on sentence-terminal punctuation followed by
// whitespace.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		// loc[0] is the punctuation mark; keep it, drop the whitespace.
		sentences = append(sentences, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// Select returns unique candidate sentences in first-seen order.
func (s *Selector) Select(text string) []string {
	sentences := SplitSentences(text)

	var candidates []string
	seen := make(map[string]struct{})
	for _, sentence := range sentences {
		clean := strings.TrimSpace(sentence)
		if !s.inWindow(clean) || !HasKeyword(clean) {
			continue
		}
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		candidates = append(candidates, clean)
	}

	log.Debug().Int("candidates", len(candidates)).Int("sentences", len(sentences)).Msg("selected candidate sentences")
	return candidates
}

func (s *Selector) inWindow(sentence string) bool {
	n := utf8.RuneCountInString(sentence)
	return n >= s.MinLength && n <= s.MaxLength
}

// HasKeyword reports whether sentence contains any of Keywords.
func HasKeyword(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, k := range Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
