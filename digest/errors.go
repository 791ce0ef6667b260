package digest

import "github.com/kliewerdaniel/News02/errors"

// Pipeline failure kinds. Match with errors.Is.
var (
	// ErrProfileNotFound means the job's profile is missing or lists no feeds
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNoArticlesFound means every feed was empty, failed, or already seen
	ErrNoArticlesFound = errors.New("no new articles found")

	// ErrNoArticlesProcessed means no article survived extraction and summarizing
	ErrNoArticlesProcessed = errors.New("no articles successfully processed")

	// ErrCollaborator marks failures of an external stage (LLM, writer, speech)
	ErrCollaborator = errors.New("collaborator failed")
)

// NewProfileNotFoundError reports a profile that is missing or has no feeds
func NewProfileNotFoundError(profile string) error {
	return errors.Mark(errors.Newf("profile %q not found or has no feeds", profile), ErrProfileNotFound)
}

func collaboratorError(err error, stage string) error {
	return errors.Mark(errors.Wrap(err, stage), ErrCollaborator)
}
