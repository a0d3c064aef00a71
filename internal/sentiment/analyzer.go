// Package sentiment scores acquired articles with the VADER model.
package sentiment

import (
	"strings"

	"github.com/jonreiter/govader"

	"github.com/tadevos/newsrange/internal/acquire"
)

// Label is the coarse sentiment classification.
type Label string

// Classification labels.
const (
	Positive Label = "Positive"
	Negative Label = "Negative"
	Neutral  Label = "Neutral"
)

// Scores carries the VADER polarity components.
type Scores struct {
	Negative float64 `json:"neg"`
	Neutral  float64 `json:"neu"`
	Positive float64 `json:"pos"`
	Compound float64 `json:"compound"`
}

// ScoredArticle is an ArticleResult with its sentiment attached.
type ScoredArticle struct {
	acquire.ArticleResult
	Sentiment Label  `json:"sentiment"`
	Scores    Scores `json:"sentiment_scores"`
}

// Analyzer wraps the VADER intensity analyzer.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// NewAnalyzer builds an Analyzer with the stock VADER lexicon.
func NewAnalyzer() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Score cleans the text and returns its label and polarity scores.
func (a *Analyzer) Score(text string) (Label, Scores) {
	polarity := a.vader.PolarityScores(CleanText(text))
	scores := Scores{
		Negative: polarity.Negative,
		Neutral:  polarity.Neutral,
		Positive: polarity.Positive,
		Compound: polarity.Compound,
	}
	return Classify(scores.Compound), scores
}

// ScoreAll scores every article, using the content when present and falling
// back to the title.
func (a *Analyzer) ScoreAll(results []acquire.ArticleResult) []ScoredArticle {
	out := make([]ScoredArticle, 0, len(results))
	for _, res := range results {
		text := res.Content
		if text == "" {
			text = res.Title
		}
		label, scores := a.Score(text)
		out = append(out, ScoredArticle{
			ArticleResult: res,
			Sentiment:     label,
			Scores:        scores,
		})
	}
	return out
}

// Classify maps a compound score to a label. The thresholds are historical:
// scores in (0, 0.01) land on Neutral, everything at or below zero on
// Negative.
func Classify(compound float64) Label {
	switch {
	case compound >= 0.01:
		return Positive
	case compound <= -0.00:
		return Negative
	default:
		return Neutral
	}
}

// adPhrases flags boilerplate lines that distort article scores.
var adPhrases = []string{
	"unlock stock picks",
	"broker-level newsfeed",
	"upgrade now",
	"don’t miss the move",
	"sign up",
	"free daily newsletter",
	"try now>>",
	"read more on",
	"view comments",
}

// minLineLen drops crumbs and button labels before scoring.
const minLineLen = 20

// CleanText removes advertising and boilerplate lines so they do not skew
// the compound score.
func CleanText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < minLineLen {
			continue
		}
		lower := strings.ToLower(line)
		skip := false
		for _, phrase := range adPhrases {
			if strings.Contains(lower, phrase) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
