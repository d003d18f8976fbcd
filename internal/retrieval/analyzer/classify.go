package analyzer

import (
	"strings"
	"unicode"

	"github.com/koopa0/rae/internal/retrieval"
)

// Rule-based intent classification, used when the understanding collaborator
// is unavailable. Keyword cues are checked in specificity order; a query
// matching nothing is exploratory.
var (
	relationalCues = []string{
		"related to", "connected to", "linked to", "relationship", "between",
		"who knows", "depends on", "associated with",
	}
	temporalCues = []string{
		"when", "yesterday", "today", "last week", "last month", "recently",
		"ago", "before", "after", "during", "latest", "newest",
	}
	aggregativeCues = []string{
		"list", "all", "every", "how many", "count", "summarize", "summary",
		"overview", "which",
	}
	conceptualCues = []string{
		"what is", "what are", "define", "definition", "meaning", "concept",
		"explain", "how does", "why",
	}
	factualCues = []string{
		"who", "where", "which", "did", "was", "is the", "name of",
	}
)

// classify applies the heuristic rules and builds the full analysis,
// including crude entity extraction (capitalized tokens) and concept
// extraction (remaining significant words).
func classify(text string) retrieval.QueryAnalysis {
	lower := strings.ToLower(text)

	intent := retrieval.IntentExploratory
	confidence := 0.3

	switch {
	case containsAny(lower, relationalCues):
		intent = retrieval.IntentRelational
		confidence = 0.6
	case containsAny(lower, temporalCues):
		intent = retrieval.IntentTemporal
		confidence = 0.6
	case containsAny(lower, aggregativeCues):
		intent = retrieval.IntentAggregative
		confidence = 0.55
	case containsAny(lower, conceptualCues):
		intent = retrieval.IntentConceptual
		confidence = 0.55
	case containsAny(lower, factualCues):
		intent = retrieval.IntentFactual
		confidence = 0.5
	}

	entities, concepts := extractTerms(text)

	return retrieval.QueryAnalysis{
		Intent:      intent,
		Confidence:  confidence,
		Entities:    entities,
		Concepts:    concepts,
		Recommended: RecommendedWeights(intent),
	}
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

// stopwords excluded from concept extraction.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "of": true, "in": true, "on": true, "to": true,
	"for": true, "and": true, "or": true, "with": true, "about": true,
	"what": true, "when": true, "where": true, "who": true, "how": true,
	"why": true, "which": true, "did": true, "do": true, "does": true,
	"my": true, "me": true, "i": true, "all": true, "list": true,
}

// extractTerms splits the query into candidate entities (tokens starting
// with an upper-case rune, excluding the sentence start unless it recurs)
// and concepts (remaining non-stopword tokens of three or more runes).
func extractTerms(text string) (entities, concepts []string) {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool, len(tokens))
	for i, tok := range tokens {
		runes := []rune(tok)
		lower := strings.ToLower(tok)
		if seen[lower] {
			continue
		}
		seen[lower] = true

		if unicode.IsUpper(runes[0]) && i > 0 {
			entities = append(entities, tok)
			continue
		}
		if len(runes) >= 3 && !stopwords[lower] {
			concepts = append(concepts, lower)
		}
	}
	return entities, concepts
}
