package bizdev

import (
	"regexp"
	"strconv"
	"strings"
)

// QualificationScorer extracts a 0-10 lead qualification score from the
// model's free-form analysis.
type QualificationScorer interface {
	Score(analysis string) float64
}

// DefaultScore is used when the analysis carries no recognizable score.
const DefaultScore = 7.5

var scorePattern = regexp.MustCompile(`score[:\s]*(\d+(?:\.\d+)?)`)

// RegexScorer scans the analysis for patterns like "score: 8" or
// "score 8.5". Values above 10 are treated as percentages and divided
// by ten.
type RegexScorer struct{}

func (RegexScorer) Score(analysis string) float64 {
	m := scorePattern.FindStringSubmatch(strings.ToLower(analysis))
	if m == nil {
		return DefaultScore
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultScore
	}
	if score > 10 {
		score = score / 10
	}
	return score
}
