package feeds

import (
	"context"
	"database/sql"
	"time"

	"github.com/kliewerdaniel/News02/digest"
	"github.com/kliewerdaniel/News02/errors"
)

// SeenStore remembers article links that already went into a digest
type SeenStore struct {
	db      *sql.DB
	timeNow func() time.Time
}

var _ digest.SeenMarker = (*SeenStore)(nil)

// NewSeenStore creates a seen-article store
func NewSeenStore(db *sql.DB) *SeenStore {
	return &SeenStore{db: db, timeNow: time.Now}
}

// Contains reports whether link was marked seen
func (s *SeenStore) Contains(ctx context.Context, link string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM seen_articles WHERE link = ?`, link).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to query seen articles")
	}
	return true, nil
}

// MarkSeen records the links of articles. Links already present keep their
// first_seen_at.
func (s *SeenStore) MarkSeen(ctx context.Context, articles []digest.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO seen_articles (link, title, source_feed, first_seen_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare seen insert")
	}
	defer stmt.Close()

	now := s.timeNow().UTC().Format(time.RFC3339)
	for _, a := range articles {
		if a.Link == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, a.Link, a.Title, a.SourceFeed, now); err != nil {
			return errors.Wrapf(err, "failed to mark %s seen", a.Link)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit seen articles")
	}
	return nil
}

// Count returns how many links are recorded
func (s *SeenStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_articles`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count seen articles")
	}
	return n, nil
}
