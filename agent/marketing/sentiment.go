package marketing

import (
	"math"
	"strings"
)

// Sentiment is the analysis of one draft.
type Sentiment struct {
	Sentiment            string   `json:"sentiment"`
	SentimentScore       float64  `json:"sentiment_score"`
	EngagementScore      float64  `json:"engagement_score"`
	PositiveIndicators   int      `json:"positive_indicators"`
	NegativeIndicators   int      `json:"negative_indicators"`
	EngagementIndicators int      `json:"engagement_indicators"`
	Hashtags             []string `json:"hashtags,omitempty"`
	CharacterCount       int      `json:"character_count"`
	WordCount            int      `json:"word_count"`
	Recommendations      []string `json:"recommendations,omitempty"`
}

// SentimentAnalyzer scores a draft's tone and engagement potential.
type SentimentAnalyzer interface {
	Analyze(text string) *Sentiment
}

var (
	positiveWords = []string{
		"excited", "amazing", "great", "awesome", "fantastic", "love",
		"excellent", "wonderful", "perfect", "incredible", "outstanding",
	}
	negativeWords = []string{
		"terrible", "awful", "hate", "horrible", "disgusting", "worst",
		"disappointing", "frustrating", "annoying", "broken", "failed",
	}
	engagementWords = []string{
		"new", "launch", "announcing", "exclusive", "limited", "free",
		"join", "discover", "check out", "learn", "get", "win",
	}
)

// LexiconAnalyzer is the default word-list analyzer. Sentiment starts
// neutral at 0.5 and moves 0.1 per indicator; engagement combines trigger
// words with how much of the length limit the draft uses.
type LexiconAnalyzer struct{}

func (LexiconAnalyzer) Analyze(text string) *Sentiment {
	lower := strings.ToLower(text)

	positive := countMatches(lower, positiveWords)
	negative := countMatches(lower, negativeWords)
	engagement := countMatches(lower, engagementWords)

	var sentiment string
	var sentimentScore float64
	switch {
	case positive > negative:
		sentiment = "positive"
		sentimentScore = math.Min(0.5+float64(positive)*0.1, 1.0)
	case negative > positive:
		sentiment = "negative"
		sentimentScore = math.Max(0.5-float64(negative)*0.1, 0.0)
	default:
		sentiment = "neutral"
		sentimentScore = 0.5
	}

	engagementScore := math.Min(0.3+float64(engagement)*0.1+float64(len(text))/280*0.2, 1.0)

	var hashtags []string
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, "#") {
			hashtags = append(hashtags, word)
		}
	}

	a := &Sentiment{
		Sentiment:            sentiment,
		SentimentScore:       round2(sentimentScore),
		EngagementScore:      round2(engagementScore),
		PositiveIndicators:   positive,
		NegativeIndicators:   negative,
		EngagementIndicators: engagement,
		Hashtags:             hashtags,
		CharacterCount:       len(text),
		WordCount:            len(strings.Fields(text)),
	}

	if a.SentimentScore < 0.6 {
		a.Recommendations = append(a.Recommendations, "Consider adding more positive language")
	}
	if a.EngagementScore < 0.5 {
		a.Recommendations = append(a.Recommendations, "Add call-to-action or engagement triggers")
	}
	switch {
	case len(hashtags) == 0:
		a.Recommendations = append(a.Recommendations, "Add relevant hashtags to increase reach")
	case len(hashtags) > 5:
		a.Recommendations = append(a.Recommendations, "Reduce hashtag count to avoid spam appearance")
	}
	if len(text) < 100 {
		a.Recommendations = append(a.Recommendations, "Consider expanding content for better engagement")
	}
	return a
}

func countMatches(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
