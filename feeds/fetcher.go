// Package feeds fetches RSS/Atom entries and article text for digests.
package feeds

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kliewerdaniel/News02/digest"
	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/internal/httpclient"
	"github.com/kliewerdaniel/News02/internal/util"
	"github.com/kliewerdaniel/News02/logger"
)

// SeenChecker reports whether a link already went into a digest
type SeenChecker interface {
	Contains(ctx context.Context, link string) (bool, error)
}

// Fetcher reads feeds with gofeed through the guarded HTTP client
type Fetcher struct {
	client  *httpclient.Client
	parser  *gofeed.Parser
	limiter *rate.Limiter
	seen    SeenChecker
	policy  *bluemonday.Policy
	logger  *zap.SugaredLogger
}

var _ digest.ArticleFetcher = (*Fetcher)(nil)

// NewFetcher creates a fetcher. requestsPerMinute <= 0 disables rate
// limiting; seen may be nil.
func NewFetcher(client *httpclient.Client, seen SeenChecker, requestsPerMinute int, log *zap.SugaredLogger) *Fetcher {
	if log == nil {
		log = logger.Logger
	}

	parser := gofeed.NewParser()
	parser.Client = client.HTTP()
	parser.UserAgent = client.UserAgent()

	return &Fetcher{
		client:  client,
		parser:  parser,
		limiter: newLimiter(requestsPerMinute),
		seen:    seen,
		policy:  bluemonday.StrictPolicy(),
		logger:  log.Named("feeds"),
	}
}

// FetchArticles returns up to maxPerFeed unseen entries from each feed, in
// feed order. A feed that fails is logged and skipped. The only error is
// context cancellation.
func (f *Fetcher) FetchArticles(ctx context.Context, feedURLs []string, maxPerFeed int) ([]digest.Article, error) {
	if maxPerFeed < 1 {
		maxPerFeed = 1
	}

	var articles []digest.Article
	inRun := make(map[string]bool)
	failed := 0

	for _, feedURL := range feedURLs {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "feed fetch cancelled")
		}

		items, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "feed fetch cancelled")
			}
			failed++
			f.logger.Warnw("Failed to fetch feed", logger.FieldFeedURL, feedURL, logger.FieldError, err)
			continue
		}

		added := 0
		for _, item := range items {
			if added >= maxPerFeed {
				break
			}
			link := strings.TrimSpace(item.Link)
			if link == "" || inRun[link] {
				continue
			}
			if f.seen != nil {
				seen, err := f.seen.Contains(ctx, link)
				if err != nil {
					f.logger.Warnw("Seen-article lookup failed", logger.FieldLink, link, logger.FieldError, err)
				} else if seen {
					continue
				}
			}

			inRun[link] = true
			articles = append(articles, digest.Article{
				Title:      f.cleanTitle(item.Title),
				Link:       link,
				SourceFeed: feedURL,
				Published:  published(item),
			})
			added++
		}
		f.logger.Debugw("Fetched feed", logger.FieldFeedURL, feedURL, logger.FieldCount, added)
	}

	f.logger.Infow("Fetched articles",
		logger.FieldCount, len(articles),
		"feeds", len(feedURLs),
		"failed_feeds", failed)
	return articles, nil
}

// fetchFeed returns the entries of one feed in document order
func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) ([]*gofeed.Item, error) {
	if _, err := f.client.ValidateURL(feedURL); err != nil {
		return nil, err
	}
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse feed %s", feedURL)
	}
	return feed.Items, nil
}

// cleanTitle strips markup from a feed title
func (f *Fetcher) cleanTitle(title string) string {
	return util.NormalizeWhitespace(html.UnescapeString(f.policy.Sanitize(title)))
}

// published prefers the publish date and falls back to the update date
func published(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}
