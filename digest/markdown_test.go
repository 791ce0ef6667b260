package digest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderTime = time.Date(2025, 6, 4, 7, 5, 9, 0, time.UTC)

func TestFileStem(t *testing.T) {
	assert.Equal(t, "Morning_Tech_2025-06-04_07-05-09", FileStem("Morning Tech", renderTime))
	assert.Equal(t, "a_b_c-d_2025-06-04_07-05-09", FileStem("a/b.c-d", renderTime))
	assert.Equal(t, "digest_2025-06-04_07-05-09", FileStem("", renderTime))
}

func TestAudioPath(t *testing.T) {
	assert.Equal(t, filepath.Join("output", "x_2025.mp3"), AudioPath(filepath.Join("output", "x_2025.md")))
}

func TestSourceDomain(t *testing.T) {
	assert.Equal(t, "bbc.co.uk", SourceDomain("https://www.bbc.co.uk/news/rss.xml"))
	assert.Equal(t, "feeds.npr.org", SourceDomain("https://feeds.npr.org/1001/rss.xml"))
	assert.Equal(t, "Unknown Source", SourceDomain("not a url"))
}

func TestRenderMarkdown(t *testing.T) {
	summaries := []Summary{
		{Article: Article{Title: "Rates hold", Link: "https://news.example.com/rates", SourceFeed: "https://www.example.com/rss.xml"}, Text: "s1"},
		{Article: Article{Link: "https://other.org/x", SourceFeed: "https://other.org/feed"}, Text: "s2"},
	}

	doc := RenderMarkdown("Good evening.", summaries, Meta{
		JobName:        "Evening",
		LLMProvider:    "ollama",
		SummaryModel:   "default_model",
		BroadcastModel: "broadcast_model",
	}, renderTime)

	wantHeader := "# News Digest - 06/04/2025\n" +
		"News Digest - 2025-06-04 07:05:09\n\n" +
		"Generated by: News02 Enhanced\n" +
		"RSS Profile: Evening\n" +
		"LLM Provider: ollama\n" +
		"Articles Processed: 2\n" +
		"Models Used:\n" +
		"- Summary: default_model\n" +
		"- Broadcast: broadcast_model\n\n" +
		"---\n\n" +
		"Good evening.\n"
	assert.True(t, strings.HasPrefix(doc, wantHeader), doc)

	assert.Contains(t, doc, "## Reference Sources")
	assert.Contains(t, doc, "1. **Rates hold**\n   - URL: https://news.example.com/rates\n   - Source: example.com\n")
	assert.Contains(t, doc, "2. **Article 2**\n   - URL: https://other.org/x\n   - Source: other.org\n")
}

func TestRenderMarkdown_NoJobNoSummaries(t *testing.T) {
	doc := RenderMarkdown("text", nil, Meta{LLMProvider: "openai"}, renderTime)

	assert.Contains(t, doc, "Profile: Default\n")
	assert.Contains(t, doc, "Articles Processed: Unknown\n")
	assert.NotContains(t, doc, "Reference Sources")
}

func TestMarkdownWriter_SaveDigest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	writer := NewMarkdownWriterWithClock(dir, func() time.Time { return renderTime })

	path, err := writer.SaveDigest("Hello.", nil, Meta{JobName: "Morning Tech", LLMProvider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Morning_Tech_2025-06-04_07-05-09.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Hello.")
}
