package analysis

import (
	"sort"
	"strings"
)

// Heuristic analysis used when no chat API key is configured, or when the
// model answer cannot be parsed. Results are tagged uncertain upstream.

var positiveWords = map[string]bool{
	"good": true, "great": true, "excellent": true, "love": true, "best": true,
	"happy": true, "improve": true, "success": true, "win": true, "better": true,
}

var negativeWords = map[string]bool{
	"bad": true, "terrible": true, "hate": true, "worst": true, "fail": true,
	"problem": true, "wrong": true, "crisis": true, "lose": true, "worse": true,
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"of": true, "to": true, "in": true, "on": true, "for": true, "with": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"it": true, "its": true, "this": true, "that": true, "these": true,
	"i": true, "you": true, "he": true, "she": true, "we": true, "they": true,
	"my": true, "your": true, "our": true, "their": true, "so": true, "as": true,
	"at": true, "by": true, "from": true, "not": true, "no": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true, "will": true,
	"would": true, "can": true, "could": true, "about": true, "what": true,
	"when": true, "where": true, "who": true, "how": true, "all": true, "just": true,
}

func heuristicSentiment(text string) string {
	positives, negatives := 0, 0
	for _, word := range tokenize(text) {
		if positiveWords[word] {
			positives++
		}
		if negativeWords[word] {
			negatives++
		}
	}
	switch {
	case positives == 0 && negatives == 0:
		return "neutral"
	case positives > 2*negatives:
		return "positive"
	case negatives > 2*positives:
		return "negative"
	default:
		return "mixed"
	}
}

func heuristicKeywords(text string, limit int) []string {
	counts := make(map[string]int)
	for _, word := range tokenize(text) {
		if len(word) < 4 || stopwords[word] {
			continue
		}
		counts[word]++
	}
	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

// claimVerbs mark sentences that assert something checkable.
var claimVerbs = []string{" is ", " are ", " was ", " were ", " will ", " causes ", " caused ", " proves ", " shows "}

func heuristicClaims(text string, limit int) []string {
	claims := make([]string, 0, limit)
	for _, sentence := range splitSentences(text) {
		if len(claims) >= limit {
			break
		}
		padded := " " + strings.ToLower(sentence) + " "
		for _, verb := range claimVerbs {
			if strings.Contains(padded, verb) {
				claims = append(claims, sentence)
				break
			}
		}
	}
	return claims
}

func heuristicSummary(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}
	return strings.Join(sentences, " ")
}

// fallacyMarkers map textual cues to the fallacy they suggest.
var fallacyMarkers = []struct {
	cue      string
	fallacy  string
	explains string
}{
	{"everyone knows", "bandwagon", "popularity offered in place of evidence"},
	{"everybody agrees", "bandwagon", "popularity offered in place of evidence"},
	{"always", "overgeneralization", "universal claim from limited cases"},
	{"never", "overgeneralization", "universal claim from limited cases"},
	{"either", "false dilemma", "only two options presented"},
	{"real expert", "appeal to authority", "authority substituted for argument"},
	{"slippery slope", "slippery slope", "chain of consequences asserted without support"},
}

func heuristicFallacies(text string, limit int) []Fallacy {
	found := make([]Fallacy, 0, limit)
	for _, sentence := range splitSentences(text) {
		if len(found) >= limit {
			break
		}
		lowered := strings.ToLower(sentence)
		for _, marker := range fallacyMarkers {
			if strings.Contains(lowered, marker.cue) {
				found = append(found, Fallacy{
					Type:        marker.fallacy,
					Excerpt:     sentence,
					Explanation: marker.explains,
				})
				break
			}
		}
	}
	return found
}

func heuristicPerspectives(claims []string, limit int) []Perspective {
	perspectives := make([]Perspective, 0, limit)
	for _, claim := range claims {
		if len(perspectives) >= limit {
			break
		}
		perspectives = append(perspectives, Perspective{
			Viewpoint: "The claim \"" + strings.TrimSpace(claim) + "\" may not hold in all cases.",
			Rationale: "No supporting evidence is cited in the transcript itself.",
		})
	}
	return perspectives
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	})
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentences := make([]string, 0, len(raw))
	for _, sentence := range raw {
		if sentence = strings.TrimSpace(sentence); sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}
