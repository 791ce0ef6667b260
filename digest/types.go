package digest

import (
	"context"
	"time"

	"github.com/kliewerdaniel/News02/schedule"
)

// Article is a feed entry selected for a digest
type Article struct {
	Title      string     `json:"title"`
	Link       string     `json:"link"`
	SourceFeed string     `json:"source_feed"`
	Published  *time.Time `json:"published,omitempty"`
}

// Summary is an article together with its LLM summary
type Summary struct {
	Article
	Text string `json:"summary"`
}

// RunParams carries the per-job tunables to every collaborator of a run.
// Model fields hold model ids (e.g. "default_model") that the LLM layer
// maps to concrete model names.
type RunParams struct {
	JobName         string
	Profile         string
	ArticlesPerFeed int
	SummaryModel    string
	BroadcastModel  string
}

// ParamsForJob derives the run parameters of job
func ParamsForJob(job *schedule.Job) RunParams {
	return RunParams{
		JobName:         job.Name,
		Profile:         job.Profile,
		ArticlesPerFeed: job.ArticlesPerFeed,
		SummaryModel:    job.SummaryModel,
		BroadcastModel:  job.BroadcastModel,
	}
}

// ProfileResolver maps a profile name to its feed URLs
type ProfileResolver interface {
	Resolve(name string) ([]string, error)
}

// ArticleFetcher pulls at most maxPerFeed new entries from each feed
type ArticleFetcher interface {
	FetchArticles(ctx context.Context, feedURLs []string, maxPerFeed int) ([]Article, error)
}

// SeenMarker remembers articles that made it into a digest so later runs
// skip them
type SeenMarker interface {
	MarkSeen(ctx context.Context, articles []Article) error
}

// ContentExtractor returns the readable text of an article page
type ContentExtractor interface {
	Extract(ctx context.Context, link string) (string, error)
}

// Summarizer condenses article text
type Summarizer interface {
	Summarize(ctx context.Context, text string, params RunParams) (string, error)
}

// BroadcastGenerator writes one spoken script from many summaries
type BroadcastGenerator interface {
	GenerateBroadcast(ctx context.Context, summaries []Summary, params RunParams) (string, error)
}

// Writer persists the digest document and returns its path
type Writer interface {
	SaveDigest(broadcast string, summaries []Summary, meta Meta) (string, error)
}

// SpeechSynthesizer renders text to an audio file at outputPath
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, outputPath, voice string) error
}

// Recorder stores execution bookkeeping. *schedule.Recorder implements it.
type Recorder interface {
	StartExecution(jobID string) (int64, error)
	CompleteExecution(id int64, res schedule.ExecutionResult) error
	ApplyPostExecutionUpdate(job *schedule.Job, success bool, errMsg string, output string) error
}

// ProgressReporter receives stage updates. *schedule.Status implements it.
type ProgressReporter interface {
	Begin(job *schedule.Job)
	Update(progress int, stage string)
	Complete()
	Fail(msg string)
}
