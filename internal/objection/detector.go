// Package objection detects sales objections in transcript chunks and
// publishes objection-detected events.
package objection

import (
	"strings"

	"github.com/EduardoFdeM/PitchAI/internal/event/events"
)

// Match is one detected objection.
type Match struct {
	Category   events.ObjectionCategory
	Confidence float64
	Snippet    string
}

// snippetRadius is how many characters around the first matched phrase
// are kept as evidence.
const snippetRadius = 60

// categoryPhrases maps each objection category to the phrases that
// signal it. Matching is case-insensitive substring search.
var categoryPhrases = map[events.ObjectionCategory][]string{
	events.ObjectionPrice: {
		"too expensive", "expensive", "the price", "pricey", "over budget",
		"can't afford", "cannot afford", "cheaper", "costs too much",
		"discount", "out of our budget",
	},
	events.ObjectionTiming: {
		"not right now", "not now", "next quarter", "next year", "too soon",
		"bad timing", "maybe later", "call me back", "no time", "revisit this",
	},
	events.ObjectionAuthority: {
		"my boss", "my manager", "decision maker", "not my decision",
		"have to ask", "need approval", "talk to my team", "run it by",
		"sign-off",
	},
	events.ObjectionNeed: {
		"don't need", "do not need", "not interested", "already have",
		"no use for", "why would we", "doesn't apply", "not a priority",
	},
}

// Detector matches transcript text against the objection phrase lists.
// It is stateless and safe for concurrent use.
type Detector struct{}

// NewDetector creates a keyword objection detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns at most one match per category, strongest evidence
// first is not guaranteed; callers publish every match.
func (d *Detector) Detect(text string) []Match {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}

	var out []Match
	for _, cat := range []events.ObjectionCategory{
		events.ObjectionPrice,
		events.ObjectionTiming,
		events.ObjectionAuthority,
		events.ObjectionNeed,
	} {
		hits := 0
		firstIdx := -1
		for _, phrase := range categoryPhrases[cat] {
			idx := strings.Index(lower, phrase)
			if idx < 0 {
				continue
			}
			hits++
			if firstIdx < 0 || idx < firstIdx {
				firstIdx = idx
			}
		}
		if hits == 0 {
			continue
		}

		conf := 0.6 + 0.1*float64(hits-1)
		if conf > 0.95 {
			conf = 0.95
		}
		out = append(out, Match{
			Category:   cat,
			Confidence: conf,
			Snippet:    snippet(text, firstIdx),
		})
	}
	return out
}

func snippet(text string, idx int) string {
	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + snippetRadius
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}
