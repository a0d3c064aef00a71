// Package convert flattens checkpoint snapshots to CSV for downstream
// spreadsheet and time-series tooling.
package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tadevos/newsrange/internal/acquire"
	"github.com/tadevos/newsrange/internal/sentiment"
)

// SentimentCSV writes one row per scored article: date plus the four VADER
// components.
func SentimentCSV(w io.Writer, articles []sentiment.ScoredArticle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "neg", "neu", "pos", "compound"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, art := range articles {
		row := []string{
			art.Day.String(),
			formatScore(art.Scores.Negative),
			formatScore(art.Scores.Neutral),
			formatScore(art.Scores.Positive),
			formatScore(art.Scores.Compound),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", art.Day, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ArticlesCSV writes the unscored article fields, one row per day.
func ArticlesCSV(w io.Writer, results []acquire.ArticleResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"day", "query", "title", "url", "publish_date", "content"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, res := range results {
		publishDate := ""
		if res.PublishDate != nil {
			publishDate = res.PublishDate.String()
		}
		row := []string{
			res.Day.String(),
			res.Query,
			res.Title,
			res.URL,
			publishDate,
			res.Content,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", res.Day, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
