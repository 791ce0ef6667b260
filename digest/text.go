package digest

import (
	"fmt"
	"path"
	"strings"

	"github.com/kliewerdaniel/News02/internal/util"
)

// CleanTextForSpeech strips what should not be read aloud from a broadcast
// script: blank lines, whole-line parenthesized stage directions such as
// "(Intro Music)" and "Anchor:" labels. Whitespace is collapsed.
func CleanTextForSpeech(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "(") && strings.HasSuffix(line, ")") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "Anchor:"); ok {
			line = strings.TrimSpace(rest)
			if line == "" {
				continue
			}
		}
		kept = append(kept, line)
	}
	return util.NormalizeWhitespace(strings.Join(kept, " "))
}

// FeedName is the short label of a feed URL used in broadcast prompts: its
// last path segment without .xml or .rss
func FeedName(feedURL string) string {
	name := path.Base(strings.TrimRight(feedURL, "/"))
	name = strings.ReplaceAll(name, ".xml", "")
	return strings.ReplaceAll(name, ".rss", "")
}

// FormatForBroadcast groups summaries by source feed, in order of first
// appearance:
//
//	From rss:
//	- Title: summary
func FormatForBroadcast(summaries []Summary) string {
	var order []string
	groups := make(map[string][]Summary)
	for _, s := range summaries {
		if _, ok := groups[s.SourceFeed]; !ok {
			order = append(order, s.SourceFeed)
		}
		groups[s.SourceFeed] = append(groups[s.SourceFeed], s)
	}

	var lines []string
	for _, feed := range order {
		lines = append(lines, fmt.Sprintf("From %s:", FeedName(feed)))
		for _, s := range groups[feed] {
			lines = append(lines, fmt.Sprintf("- %s: %s", s.Title, s.Text))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
