// Package evaluation interprets the structured parts of model output: plan
// lists, critique scores, confidence values and supervisor decisions.
//
// Every parser is total. When the output does not follow the requested format
// a documented fallback is returned together with ok=false so callers can log
// the recovery without failing the run.
package evaluation

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// DefaultScore is used when a critique carries no parsable SCORE line.
const DefaultScore = 7.5

// MaxScore is the upper end of the quality scale.
const MaxScore = 10.0

var (
	scorePattern      = regexp.MustCompile(`(?i)SCORE:\s*\**\s*([0-9]+(?:\.[0-9]+)?)\s*(?:/\s*([0-9]+(?:\.[0-9]+)?))?`)
	confidencePattern = regexp.MustCompile(`(?i)CONFIDENCE:\s*\**\s*([0-9]+(?:\.[0-9]+)?)\s*(%)?`)
	critiquePattern   = regexp.MustCompile(`(?is)CRITIQUE:\s*(.*)`)
	planPrefix        = regexp.MustCompile(`^\d+\s*[.):\-]?\s*`)
)

// ParseScore extracts "SCORE: X.X/10" from a critique. Scores on another
// denominator are rescaled to /10 and the result is clamped to [0,10].
func ParseScore(text string) (score float64, ok bool) {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return DefaultScore, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultScore, false
	}
	if m[2] != "" {
		if den, err := strconv.ParseFloat(m[2], 64); err == nil && den > 0 && den != MaxScore {
			v = v / den * MaxScore
		}
	}
	return clamp(v, 0, MaxScore), true
}

// ParseCritique returns the text after "CRITIQUE:" or the whole text.
func ParseCritique(text string) string {
	if m := critiquePattern.FindStringSubmatch(text); m != nil {
		if c := strings.TrimSpace(m[1]); c != "" {
			return c
		}
	}
	return strings.TrimSpace(text)
}

// ParsePlan keeps the lines that start with a digit and strips their
// numbering. Bullets and prose are ignored.
func ParsePlan(text string) []string {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !unicode.IsDigit(rune(line[0])) {
			continue
		}
		step := strings.TrimSpace(planPrefix.ReplaceAllString(line, ""))
		if step == "" {
			continue
		}
		steps = append(steps, step)
	}
	return steps
}

// ParseConfidence extracts "CONFIDENCE: 0.8" or "CONFIDENCE: 80%" as a value
// in [0,1]. Values above 1 without a percent sign are read as percentages.
func ParseConfidence(text string) (float64, bool) {
	m := confidencePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] != "" || v > 1 {
		v /= 100
	}
	return clamp(v, 0, 1), true
}

// AgentMentions returns the candidates named in text, in order of
// appearance. Names match whole words only; underscores, hyphens and spaces
// between the parts of a name are interchangeable.
func AgentMentions(text string, candidates []string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var mentions []string
	for i := range words {
		for _, c := range candidates {
			parts := strings.Split(strings.ToLower(c), "_")
			if i+len(parts) <= len(words) && slices.Equal(words[i:i+len(parts)], parts) {
				mentions = append(mentions, c)
			}
		}
	}
	return mentions
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
