package digest

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kliewerdaniel/News02/errors"
)

// Meta describes a digest for its header
type Meta struct {
	JobName        string
	LLMProvider    string
	SummaryModel   string
	BroadcastModel string
}

// MarkdownWriter saves digests as markdown files in a directory
type MarkdownWriter struct {
	dir     string
	timeNow func() time.Time
}

// NewMarkdownWriter creates a writer for dir. The directory is created on
// first save.
func NewMarkdownWriter(dir string) *MarkdownWriter {
	return NewMarkdownWriterWithClock(dir, time.Now)
}

// NewMarkdownWriterWithClock creates a writer with an injectable clock
func NewMarkdownWriterWithClock(dir string, timeNow func() time.Time) *MarkdownWriter {
	return &MarkdownWriter{dir: dir, timeNow: timeNow}
}

var unsafeFileChars = regexp.MustCompile(`[^\w\-]`)

// FileStem returns the file name without extension for a digest of jobName
// generated at t: "<job>_YYYY-MM-DD_HH-MM-SS", or "digest_..." without a name.
func FileStem(jobName string, t time.Time) string {
	ts := t.Format("2006-01-02_15-04-05")
	if jobName == "" {
		return "digest_" + ts
	}
	return unsafeFileChars.ReplaceAllString(jobName, "_") + "_" + ts
}

// AudioPath returns the audio file path paired with a digest path
func AudioPath(digestPath string) string {
	return strings.TrimSuffix(digestPath, filepath.Ext(digestPath)) + ".mp3"
}

// SaveDigest writes the digest and returns its path
func (w *MarkdownWriter) SaveDigest(broadcast string, summaries []Summary, meta Meta) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory %s", w.dir)
	}

	now := w.timeNow()
	path := filepath.Join(w.dir, FileStem(meta.JobName, now)+".md")

	if err := os.WriteFile(path, []byte(RenderMarkdown(broadcast, summaries, meta, now)), 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write digest %s", path)
	}
	return path, nil
}

// RenderMarkdown builds the digest document: header, broadcast text and a
// reference appendix that is not meant to be read aloud
func RenderMarkdown(broadcast string, summaries []Summary, meta Meta, now time.Time) string {
	var b strings.Builder

	profileLine := "Profile: Default"
	if meta.JobName != "" {
		profileLine = "RSS Profile: " + meta.JobName
	}
	articleCount := "Unknown"
	if len(summaries) > 0 {
		articleCount = fmt.Sprint(len(summaries))
	}

	fmt.Fprintf(&b, "# News Digest - %s\n", now.Format("01/02/2006"))
	fmt.Fprintf(&b, "News Digest - %s\n\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString("Generated by: News02 Enhanced\n")
	b.WriteString(profileLine + "\n")
	fmt.Fprintf(&b, "LLM Provider: %s\n", meta.LLMProvider)
	fmt.Fprintf(&b, "Articles Processed: %s\n", articleCount)
	b.WriteString("Models Used:\n")
	fmt.Fprintf(&b, "- Summary: %s\n", orDefault(meta.SummaryModel, "default_model"))
	fmt.Fprintf(&b, "- Broadcast: %s\n", orDefault(meta.BroadcastModel, "broadcast_model"))
	b.WriteString("\n---\n\n")
	b.WriteString(broadcast)
	b.WriteString("\n")
	b.WriteString(referenceSources(summaries))
	b.WriteString("\n")

	return b.String()
}

func referenceSources(summaries []Summary) string {
	if len(summaries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n---\n\n## Reference Sources\n\n")
	b.WriteString("*This section contains the original articles used to generate this broadcast and is not part of the spoken content.*\n\n")
	for i, s := range summaries {
		title := s.Title
		if title == "" {
			title = fmt.Sprintf("Article %d", i+1)
		}
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, title)
		if s.Link != "" {
			fmt.Fprintf(&b, "   - URL: %s\n", s.Link)
		}
		fmt.Fprintf(&b, "   - Source: %s\n\n", SourceDomain(s.SourceFeed))
	}
	return b.String()
}

// SourceDomain returns the host of a feed URL without a leading "www."
func SourceDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return "Unknown Source"
	}
	return strings.Replace(u.Host, "www.", "", 1)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
