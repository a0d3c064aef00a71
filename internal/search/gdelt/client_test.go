package gdelt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const artlistFixture = `{
  "articles": [
    {
      "url": "https://example.com/english-article",
      "title": "Inflation eases slightly",
      "seendate": "20240305T143000Z",
      "language": "English",
      "sourcecountry": "United States",
      "domain": "example.com"
    },
    {
      "url": "https://example.de/german-article",
      "title": "Inflation sinkt leicht",
      "seendate": "20240305T150000Z",
      "language": "German",
      "sourcecountry": "Germany",
      "domain": "example.de"
    },
    {
      "url": "https://example.com/no-seendate",
      "title": "Untimed piece",
      "seendate": "",
      "language": "English",
      "sourcecountry": "United States",
      "domain": "example.com"
    }
  ]
}`

func testDay() civil.Date {
	return civil.Date{Year: 2024, Month: time.March, Day: 5}
}

func TestClient_SearchBuildsDayWindowAndParsesCandidates(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(artlistFixture))
	}))
	defer srv.Close()

	client := New(Config{
		BaseURL:     srv.URL,
		Country:     "US",
		MaxRecords:  6,
		EnglishOnly: true,
	}, nil, zap.NewNop())

	candidates, err := client.Search(context.Background(), testDay(), "inflation")
	require.NoError(t, err)

	require.Equal(t, "inflation sourcecountry:US", gotQuery.Get("query"))
	require.Equal(t, "artlist", gotQuery.Get("mode"))
	require.Equal(t, "json", gotQuery.Get("format"))
	require.Equal(t, "20240305000000", gotQuery.Get("startdatetime"))
	require.Equal(t, "20240306000000", gotQuery.Get("enddatetime"))

	// The German article is filtered out.
	require.Len(t, candidates, 2)
	require.Equal(t, "https://example.com/english-article", candidates[0].URL)
	require.NotNil(t, candidates[0].ListingDate)
	require.Equal(t, testDay(), *candidates[0].ListingDate)

	// Missing seendate yields a dateless candidate, not an error.
	require.Equal(t, "https://example.com/no-seendate", candidates[1].URL)
	require.Nil(t, candidates[1].ListingDate)
}

func TestClient_SearchWithoutCountryOrLanguageFilter(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(artlistFixture))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil, zap.NewNop())

	candidates, err := client.Search(context.Background(), testDay(), "inflation")
	require.NoError(t, err)
	require.Equal(t, "inflation", gotQuery.Get("query"))
	require.Len(t, candidates, 3)
}

func TestClient_SearchCapsCandidatesAtMaxRecords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(artlistFixture))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, MaxRecords: 1}, nil, zap.NewNop())

	candidates, err := client.Search(context.Background(), testDay(), "inflation")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestClient_SearchNonOKStatusIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil, zap.NewNop())

	_, err := client.Search(context.Background(), testDay(), "inflation")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestClient_SearchMalformedJSONIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil, zap.NewNop())

	_, err := client.Search(context.Background(), testDay(), "inflation")
	require.Error(t, err)
}

func TestParseSeenDate(t *testing.T) {
	t.Parallel()

	d := parseSeenDate("20240305T143000Z")
	require.NotNil(t, d)
	require.Equal(t, testDay(), *d)

	require.Nil(t, parseSeenDate(""))
	require.Nil(t, parseSeenDate("2024-03-05"))
}
