package fetch

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/PuerkitoBio/goquery"

	"github.com/tadevos/newsrange/internal/acquire"
)

// minParagraphLen filters navigation crumbs and cookie banners out of the
// extracted body.
const minParagraphLen = 20

// Extract pulls title, body text, and publish date out of an HTML document.
// Missing title or body yields unusable content, not an error.
func Extract(html []byte) (acquire.FetchedContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return acquire.FetchedContent{}, fmt.Errorf("parse html: %w", err)
	}
	return acquire.FetchedContent{
		Title:       extractTitle(doc),
		Text:        extractText(doc),
		PublishDate: extractPublishDate(doc),
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if title := strings.TrimSpace(v); title != "" {
			return title
		}
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// extractText joins the paragraph runs of the document. Paragraphs inside an
// <article> element win when present; otherwise every <p> is considered.
func extractText(doc *goquery.Document) string {
	scope := doc.Find("article p")
	if scope.Length() == 0 {
		scope = doc.Find("p")
	}
	var paragraphs []string
	scope.Each(func(_ int, p *goquery.Selection) {
		text := strings.Join(strings.Fields(p.Text()), " ")
		if len(text) < minParagraphLen {
			return
		}
		paragraphs = append(paragraphs, text)
	})
	return strings.Join(paragraphs, "\n")
}

// publishDateSelectors are probed in order; the first parseable value wins.
var publishDateSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="article:published_time"]`, "content"},
	{`meta[name="pubdate"]`, "content"},
	{`meta[name="date"]`, "content"},
	{`time[datetime]`, "datetime"},
}

func extractPublishDate(doc *goquery.Document) *civil.Date {
	for _, probe := range publishDateSelectors {
		v, ok := doc.Find(probe.selector).First().Attr(probe.attr)
		if !ok {
			continue
		}
		if d := parseTimestamp(strings.TrimSpace(v)); d != nil {
			return d
		}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) *civil.Date {
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := civil.DateOf(t)
			return &d
		}
	}
	return nil
}
