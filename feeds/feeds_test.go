package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/digest"
	"github.com/kliewerdaniel/News02/internal/httpclient"
	newstest "github.com/kliewerdaniel/News02/internal/testing"
)

func rssItem(title, link string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>Wed, 04 Jun 2025 07:00:00 GMT</pubDate></item>`, title, link)
}

func rssDoc(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test</title>` +
		strings.Join(items, "") + `</channel></rss>`
}

func newFeedServer(t *testing.T, feeds map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := feeds[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient() *httpclient.Client {
	return httpclient.New(httpclient.Options{Timeout: 5 * time.Second})
}

func TestFetchArticles_TakesFirstNPerFeed(t *testing.T) {
	srv := newFeedServer(t, map[string]string{
		"/tech.xml": rssDoc(
			rssItem("One", "https://example.com/1"),
			rssItem("Two", "https://example.com/2"),
			rssItem("Three", "https://example.com/3"),
		),
		"/world.rss": rssDoc(
			rssItem("Four", "https://example.com/4"),
		),
	})

	f := NewFetcher(testClient(), nil, 0, zap.NewNop().Sugar())
	articles, err := f.FetchArticles(context.Background(),
		[]string{srv.URL + "/tech.xml", srv.URL + "/world.rss"}, 2)
	require.NoError(t, err)

	require.Len(t, articles, 3)
	assert.Equal(t, "One", articles[0].Title)
	assert.Equal(t, "Two", articles[1].Title)
	assert.Equal(t, "Four", articles[2].Title)
	assert.Equal(t, srv.URL+"/tech.xml", articles[0].SourceFeed)
	assert.Equal(t, srv.URL+"/world.rss", articles[2].SourceFeed)
	require.NotNil(t, articles[0].Published)
	assert.Equal(t, 2025, articles[0].Published.Year())
}

func TestFetchArticles_SkipsFailingFeeds(t *testing.T) {
	srv := newFeedServer(t, map[string]string{
		"/ok.xml":      rssDoc(rssItem("Kept", "https://example.com/kept")),
		"/garbage.xml": "this is not a feed",
	})

	f := NewFetcher(testClient(), nil, 0, zap.NewNop().Sugar())
	articles, err := f.FetchArticles(context.Background(), []string{
		srv.URL + "/missing.xml",
		srv.URL + "/garbage.xml",
		"ftp://example.com/feed.xml",
		srv.URL + "/ok.xml",
	}, 5)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Kept", articles[0].Title)
}

func TestFetchArticles_AllFeedsFailingYieldsEmpty(t *testing.T) {
	srv := newFeedServer(t, map[string]string{})

	f := NewFetcher(testClient(), nil, 0, zap.NewNop().Sugar())
	articles, err := f.FetchArticles(context.Background(), []string{srv.URL + "/a.xml"}, 5)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestFetchArticles_SkipsSeenAndDuplicateLinks(t *testing.T) {
	db := newstest.CreateTestDB(t)
	seen := NewSeenStore(db)
	require.NoError(t, seen.MarkSeen(context.Background(), []digest.Article{
		{Title: "Old", Link: "https://example.com/old"},
	}))

	srv := newFeedServer(t, map[string]string{
		"/a.xml": rssDoc(
			rssItem("Old", "https://example.com/old"),
			rssItem("New", "https://example.com/new"),
		),
		"/b.xml": rssDoc(
			rssItem("New again", "https://example.com/new"),
			rssItem("Other", "https://example.com/other"),
		),
	})

	f := NewFetcher(testClient(), seen, 0, zap.NewNop().Sugar())
	articles, err := f.FetchArticles(context.Background(), []string{srv.URL + "/a.xml", srv.URL + "/b.xml"}, 5)
	require.NoError(t, err)

	var links []string
	for _, a := range articles {
		links = append(links, a.Link)
	}
	assert.Equal(t, []string{"https://example.com/new", "https://example.com/other"}, links)
}

func TestFetchArticles_CleansTitles(t *testing.T) {
	srv := newFeedServer(t, map[string]string{
		"/a.xml": rssDoc(rssItem("<![CDATA[<b>Markets</b>   &amp; rates]]>", "https://example.com/m")),
	})

	f := NewFetcher(testClient(), nil, 0, zap.NewNop().Sugar())
	articles, err := f.FetchArticles(context.Background(), []string{srv.URL + "/a.xml"}, 5)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Markets & rates", articles[0].Title)
}

func TestFetchArticles_Cancelled(t *testing.T) {
	srv := newFeedServer(t, map[string]string{"/a.xml": rssDoc(rssItem("A", "https://example.com/a"))})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(testClient(), nil, 1, zap.NewNop().Sugar())
	_, err := f.FetchArticles(ctx, []string{srv.URL + "/a.xml"}, 5)
	assert.Error(t, err)
}

func TestSeenStore(t *testing.T) {
	ctx := context.Background()
	s := NewSeenStore(newstest.CreateTestDB(t))

	ok, err := s.Contains(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkSeen(ctx, nil))
	require.NoError(t, s.MarkSeen(ctx, []digest.Article{
		{Title: "A", Link: "https://example.com/a", SourceFeed: "https://example.com/feed"},
		{Title: "no link"},
	}))
	// Marking twice is a no-op
	require.NoError(t, s.MarkSeen(ctx, []digest.Article{{Title: "A", Link: "https://example.com/a"}}))

	ok, err = s.Contains(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExtractor_Readability(t *testing.T) {
	para := strings.Repeat("The committee voted to approve the new transit budget after a long debate. ", 8)
	page := `<html><head><title>Budget</title></head><body>
		<nav>Home | World | Sports</nav>
		<article><h1>Budget passes</h1><p>` + para + `</p><p>` + para + `</p></article>
		<footer>Copyright</footer></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	e := NewExtractor(testClient(), zap.NewNop().Sugar())
	text, err := e.Extract(context.Background(), srv.URL+"/story")
	require.NoError(t, err)

	assert.Contains(t, text, "transit budget")
	assert.NotContains(t, text, "\n")
	assert.NotContains(t, text, "  ")
}

func TestExtractor_ShortPageFallsBackToParagraphs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><script>var x = 1;</script><p>Short   note.</p><p>Second.</p></body></html>`)
	}))
	defer srv.Close()

	e := NewExtractor(testClient(), zap.NewNop().Sugar())
	text, err := e.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Short note. Second.", text)
}

func TestExtractor_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	e := NewExtractor(testClient(), zap.NewNop().Sugar())
	_, err := e.Extract(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *httpclient.StatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}
