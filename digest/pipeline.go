// Package digest turns a scheduled job into a news digest: it resolves the
// job's feed profile, fetches and summarizes new articles, writes a
// broadcast script to a markdown file and renders it to audio.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/internal/util"
	"github.com/kliewerdaniel/News02/logger"
	"github.com/kliewerdaniel/News02/schedule"
)

// Config tunes a Pipeline
type Config struct {
	LLMProvider     string // Shown in the digest header
	Speech          bool   // Render audio after saving the digest
	Voice           string
	MaxContentChars int // Article text is cut to this many characters before summarizing
	MinContentChars int // Shorter articles are skipped
}

// DefaultConfig returns the defaults used when config values are zero
func DefaultConfig() Config {
	return Config{
		LLMProvider:     "ollama",
		Speech:          true,
		MaxContentChars: 2000,
		MinContentChars: 100,
	}
}

// Collaborators are the stages a Pipeline drives. Seen and Speech may be nil.
type Collaborators struct {
	Profiles    ProfileResolver
	Fetcher     ArticleFetcher
	Seen        SeenMarker
	Extractor   ContentExtractor
	Summarizer  Summarizer
	Broadcaster BroadcastGenerator
	Writer      Writer
	Speech      SpeechSynthesizer
}

// Pipeline executes jobs. It implements schedule.Executor.
type Pipeline struct {
	c        Collaborators
	recorder Recorder
	status   ProgressReporter
	cfg      Config
	logger   *zap.SugaredLogger
}

var _ schedule.Executor = (*Pipeline)(nil)

// NewPipeline creates a pipeline. status receives every stage transition.
func NewPipeline(c Collaborators, recorder Recorder, status ProgressReporter, cfg Config, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = logger.Logger
	}
	defaults := DefaultConfig()
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = defaults.MaxContentChars
	}
	if cfg.MinContentChars <= 0 {
		cfg.MinContentChars = defaults.MinContentChars
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = defaults.LLMProvider
	}
	return &Pipeline{
		c:        c,
		recorder: recorder,
		status:   status,
		cfg:      cfg,
		logger:   log.Named("pipeline"),
	}
}

// runOutput is what a successful run produced
type runOutput struct {
	digestPath string
	audioPath  string
	summaries  []Summary
	articles   []Article
}

// Execute runs job through every stage and records the outcome: the
// execution row is sealed, the job's counters and next_run are updated and
// status ends at Complete or Error. Failures are reported in the Result,
// never panicked or returned.
func (p *Pipeline) Execute(ctx context.Context, job *schedule.Job) schedule.Result {
	log := p.logger.With(logger.FieldJobID, job.ID, logger.FieldJobName, job.Name)
	start := time.Now()

	p.status.Begin(job)

	execID, err := p.recorder.StartExecution(job.ID)
	if err != nil {
		return p.fail(job, 0, errors.Wrap(err, "failed to record execution start"), log)
	}
	log = log.With(logger.FieldExecutionID, execID)

	out, err := p.run(ctx, job, log)
	if err != nil {
		return p.fail(job, execID, err, log)
	}

	if err := p.recorder.CompleteExecution(execID, schedule.ExecutionResult{
		Success:      true,
		OutputFile:   out.digestPath,
		AudioFile:    out.audioPath,
		ArticleCount: len(out.summaries),
	}); err != nil {
		log.Errorw("Failed to seal execution", logger.FieldError, err)
	}
	if err := p.recorder.ApplyPostExecutionUpdate(job, true, "", out.digestPath); err != nil {
		log.Errorw("Failed to update job after execution", logger.FieldError, err)
	}
	if p.c.Seen != nil {
		if err := p.c.Seen.MarkSeen(ctx, out.articles); err != nil {
			log.Warnw("Failed to remember processed articles", logger.FieldError, err)
		}
	}

	p.status.Complete()
	log.Infow("Digest complete",
		logger.FieldFile, out.digestPath,
		logger.FieldCount, len(out.summaries),
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return schedule.Result{
		Success:      true,
		DigestPath:   out.digestPath,
		AudioPath:    out.audioPath,
		ArticleCount: len(out.summaries),
	}
}

func (p *Pipeline) run(ctx context.Context, job *schedule.Job, log *zap.SugaredLogger) (*runOutput, error) {
	p.status.Update(10, schedule.StageLoadProfile)
	feeds, err := p.c.Profiles.Resolve(job.Profile)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to load profile %q", job.Profile)
	}
	if len(feeds) == 0 {
		return nil, NewProfileNotFoundError(job.Profile)
	}

	params := ParamsForJob(job)

	p.status.Update(25, schedule.StageFetching)
	articles, err := p.c.Fetcher.FetchArticles(ctx, feeds, params.ArticlesPerFeed)
	if err != nil {
		return nil, collaboratorError(err, "fetch articles")
	}
	if len(articles) == 0 {
		return nil, errors.WithStack(ErrNoArticlesFound)
	}
	log.Infow("Fetched articles", logger.FieldCount, len(articles), "feeds", len(feeds))

	p.status.Update(50, fmt.Sprintf("Processing %d articles", len(articles)))
	summaries := p.summarizeAll(ctx, articles, params, log)
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "cancelled while summarizing")
	}
	if len(summaries) == 0 {
		return nil, errors.WithStack(ErrNoArticlesProcessed)
	}

	p.status.Update(75, fmt.Sprintf("Generating broadcast from %d articles", len(summaries)))
	broadcast, err := p.c.Broadcaster.GenerateBroadcast(ctx, summaries, params)
	if err != nil {
		return nil, collaboratorError(err, "generate broadcast")
	}
	if strings.TrimSpace(broadcast) == "" {
		return nil, collaboratorError(errors.New("empty broadcast script"), "generate broadcast")
	}

	p.status.Update(90, schedule.StageSavingFiles)
	digestPath, err := p.c.Writer.SaveDigest(broadcast, summaries, Meta{
		JobName:        job.Name,
		LLMProvider:    p.cfg.LLMProvider,
		SummaryModel:   params.SummaryModel,
		BroadcastModel: params.BroadcastModel,
	})
	if err != nil {
		return nil, collaboratorError(err, "save digest")
	}

	out := &runOutput{digestPath: digestPath, summaries: summaries, articles: articles}

	if p.cfg.Speech && p.c.Speech != nil {
		p.status.Update(95, schedule.StageAudio)
		audioPath := AudioPath(digestPath)
		if err := p.c.Speech.Synthesize(ctx, CleanTextForSpeech(broadcast), audioPath, p.cfg.Voice); err != nil {
			return nil, collaboratorError(err, "generate audio")
		}
		out.audioPath = audioPath
	}

	return out, nil
}

// summarizeAll extracts and summarizes each article in order. Articles that
// fail or are too short are logged and left out.
func (p *Pipeline) summarizeAll(ctx context.Context, articles []Article, params RunParams, log *zap.SugaredLogger) []Summary {
	var summaries []Summary
	for _, article := range articles {
		if ctx.Err() != nil {
			return summaries
		}

		text, err := p.c.Extractor.Extract(ctx, article.Link)
		if err != nil {
			log.Warnw("Failed to extract article", logger.FieldLink, article.Link, logger.FieldError, err)
			continue
		}

		text = strings.TrimSpace(util.TruncateRunes(text, p.cfg.MaxContentChars))
		if utf8.RuneCountInString(text) < p.cfg.MinContentChars {
			log.Warnw("Article too short, skipping", logger.FieldLink, article.Link, logger.FieldSize, len(text))
			continue
		}

		summary, err := p.c.Summarizer.Summarize(ctx, text, params)
		if err != nil {
			log.Warnw("Failed to summarize article",
				logger.FieldLink, article.Link,
				logger.FieldModel, params.SummaryModel,
				logger.FieldError, err)
			continue
		}

		summaries = append(summaries, Summary{Article: article, Text: strings.TrimSpace(summary)})
	}
	return summaries
}

// fail seals the execution (when one was started) and records the failure
// on the job. execID 0 means no execution row exists.
func (p *Pipeline) fail(job *schedule.Job, execID int64, err error, log *zap.SugaredLogger) schedule.Result {
	msg := err.Error()
	log.Errorw("Digest failed", logger.FieldError, err)

	if execID != 0 {
		if sealErr := p.recorder.CompleteExecution(execID, schedule.ExecutionResult{ErrorMessage: msg}); sealErr != nil {
			log.Errorw("Failed to seal execution", logger.FieldError, sealErr)
		}
	}
	if updErr := p.recorder.ApplyPostExecutionUpdate(job, false, msg, ""); updErr != nil {
		log.Errorw("Failed to update job after execution", logger.FieldError, updErr)
	}

	p.status.Fail(msg)
	return schedule.Result{Err: err}
}
