package insights

import (
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
)

var keywordStopwords = map[string]bool{
	"guide": true, "tips": true, "ways": true, "things": true,
	"best": true, "top": true, "new": true, "review": true,
}

// TitleKeywords extracts the most frequent nouns across article titles,
// giving prompts a cheap signal for what the content is literally about.
// Output is sorted by frequency, alphabetical on ties, at most limit entries.
// Tagging failures degrade to no keywords rather than an error.
func TitleKeywords(titles []string, limit int) []string {
	text := strings.TrimSpace(strings.Join(titles, ". "))
	if text == "" || limit <= 0 {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil
	}

	counts := make(map[string]int)
	for _, tok := range doc.Tokens() {
		if !strings.HasPrefix(tok.Tag, "NN") {
			continue
		}
		word := strings.ToLower(strings.Trim(tok.Text, ".,!?:;\"'"))
		if len(word) < 3 || keywordStopwords[word] {
			continue
		}
		counts[word]++
	}

	keywords := make([]string, 0, len(counts))
	for word := range counts {
		keywords = append(keywords, word)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}
