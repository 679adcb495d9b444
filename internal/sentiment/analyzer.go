// Package sentiment scores transcript text for valence and engagement
// and publishes rolling-window updates on the event bus.
package sentiment

import (
	"strings"
)

// Score is the outcome of analyzing one piece of text.
type Score struct {
	// Valence is in [-1, +1]: negative to positive.
	Valence float64

	// Engagement is in [0, 1]: how actively the speaker participates.
	Engagement float64
}

// Lexicon holds the phrase lists the analyzer matches against.
// Matching is case-insensitive substring search, so multi-word phrases
// like "not interested" work.
type Lexicon struct {
	Positive   []string
	Negative   []string
	Engagement []string
}

// DefaultLexicon returns the built-in sales-call lexicon.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: []string{
			"good", "great", "excellent", "fantastic", "wonderful",
			"satisfied", "happy", "like", "interesting", "love",
			"yes", "agree", "perfect", "ideal", "works",
		},
		Negative: []string{
			"bad", "awful", "terrible", "horrible", "unsatisfied",
			"don't like", "problem", "difficult", "expensive", "complicated",
			"no", "disagree", "impossible", "not interested", "doesn't work",
		},
		Engagement: []string{
			"how", "when", "what", "why", "tell me", "show me",
			"price", "cost", "contract", "terms", "pilot", "demo",
			"roi", "budget", "discount", "next steps",
		},
	}
}

// Analyzer scores text against a lexicon. It is stateless and safe for
// concurrent use once built.
type Analyzer struct {
	lex Lexicon
}

// NewAnalyzer creates an analyzer. A zero Lexicon falls back to the
// default.
func NewAnalyzer(lex Lexicon) *Analyzer {
	if len(lex.Positive) == 0 && len(lex.Negative) == 0 && len(lex.Engagement) == 0 {
		lex = DefaultLexicon()
	}
	return &Analyzer{lex: lex}
}

// Analyze scores one piece of text.
func (a *Analyzer) Analyze(text string) Score {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return Score{}
	}

	pos := countMatches(lower, a.lex.Positive)
	neg := countMatches(lower, a.lex.Negative)

	var valence float64
	if pos+neg > 0 {
		valence = float64(pos-neg) / float64(pos+neg)
	}

	eng := float64(countMatches(lower, a.lex.Engagement)) / 3
	if strings.Contains(lower, "?") {
		eng += 0.2
	}
	if eng > 1 {
		eng = 1
	}

	return Score{Valence: clamp(valence, -1, 1), Engagement: eng}
}

func countMatches(lower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
