package feeds

import (
	"bytes"
	"context"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/digest"
	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/internal/httpclient"
	"github.com/kliewerdaniel/News02/internal/util"
	"github.com/kliewerdaniel/News02/logger"
)

// minReadableChars is the shortest readability result accepted before
// falling back to collecting paragraphs.
const minReadableChars = 200

// Extractor downloads an article page and returns its main text
type Extractor struct {
	client *httpclient.Client
	logger *zap.SugaredLogger
}

var _ digest.ContentExtractor = (*Extractor)(nil)

// NewExtractor creates an extractor
func NewExtractor(client *httpclient.Client, log *zap.SugaredLogger) *Extractor {
	if log == nil {
		log = logger.Logger
	}
	return &Extractor{client: client, logger: log.Named("extract")}
}

// Extract fetches link and returns whitespace-normalized article text.
// An empty string with nil error means the page had no readable text.
func (e *Extractor) Extract(ctx context.Context, link string) (string, error) {
	body, finalURL, err := e.client.Fetch(ctx, link)
	if err != nil {
		return "", errors.Wrap(err, "failed to download article")
	}

	article, err := readability.FromReader(bytes.NewReader(body), finalURL)
	if err == nil {
		var buf strings.Builder
		if err := article.RenderText(&buf); err == nil {
			text := util.NormalizeWhitespace(buf.String())
			if len(text) >= minReadableChars {
				return text, nil
			}
		}
	} else {
		e.logger.Debugw("Readability failed, collecting paragraphs", logger.FieldLink, link, logger.FieldError, err)
	}

	return paragraphs(body)
}

// paragraphs joins the text of <p> elements, or the body text when there
// are none.
func paragraphs(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse article html")
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := util.NormalizeWhitespace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return util.NormalizeWhitespace(doc.Find("body").Text()), nil
	}
	return strings.Join(parts, " "), nil
}
