package commands

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/ai/provider"
	"github.com/kliewerdaniel/News02/am"
	"github.com/kliewerdaniel/News02/db"
	"github.com/kliewerdaniel/News02/digest"
	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/feeds"
	"github.com/kliewerdaniel/News02/internal/httpclient"
	"github.com/kliewerdaniel/News02/internal/version"
	"github.com/kliewerdaniel/News02/logger"
	"github.com/kliewerdaniel/News02/profiles"
	"github.com/kliewerdaniel/News02/schedule"
	"github.com/kliewerdaniel/News02/speech"
)

// openDatabase opens and migrates the job database.
// If dbPath is empty, it comes from am config.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		path, err := am.GetDatabasePath()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get database path")
		}
		dbPath = path
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}
	return database, nil
}

// runtime is the wired digest stack shared by `job run`, `scheduler start`
// and `run-overdue`
type runtime struct {
	cfg        *am.Config
	jobs       *schedule.Store
	executions *schedule.ExecutionStore
	status     *schedule.Status
	profiles   *profiles.FileResolver
	pipeline   *digest.Pipeline
}

// newRuntime builds the pipeline and its collaborators from cfg
func newRuntime(cfg *am.Config, database *sql.DB, log *zap.SugaredLogger) (*runtime, error) {
	jobs := schedule.NewStore(database)
	executions := schedule.NewExecutionStore(database)
	status := schedule.NewStatus()

	client := httpclient.New(httpclient.Options{
		Timeout:        cfg.Feeds.Timeout(),
		BlockPrivateIP: cfg.Feeds.BlockPrivateIP,
		UserAgent:      version.Get().UserAgent(),
	})
	seen := feeds.NewSeenStore(database)
	resolver := profiles.NewFileResolver(cfg.Paths.ProfilesFile)
	_, summarizer := provider.NewFromConfig(cfg, log)

	c := digest.Collaborators{
		Profiles:    resolver,
		Fetcher:     feeds.NewFetcher(client, seen, cfg.Feeds.RequestsPerMinute, log),
		Seen:        seen,
		Extractor:   feeds.NewExtractor(client, log),
		Summarizer:  summarizer,
		Broadcaster: summarizer,
		Writer:      digest.NewMarkdownWriter(cfg.Paths.OutputDir),
	}
	if cfg.TTS.Enabled {
		synth, err := speech.NewCommandSynthesizer(cfg.TTS.Command, cfg.TTS.Voice, log)
		if err != nil {
			return nil, errors.WithHint(err, "check tts.command in am.toml or set tts.enabled = false")
		}
		c.Speech = synth
	}

	pipeline := digest.NewPipeline(c, schedule.NewRecorder(jobs, executions), status, digest.Config{
		LLMProvider:     cfg.LLM.Provider,
		Speech:          cfg.TTS.Enabled,
		Voice:           cfg.TTS.Voice,
		MaxContentChars: cfg.Feeds.MaxContentChars,
		MinContentChars: cfg.Feeds.MinContentChars,
	}, log)

	return &runtime{
		cfg:        cfg,
		jobs:       jobs,
		executions: executions,
		status:     status,
		profiles:   resolver,
		pipeline:   pipeline,
	}, nil
}

// reconcileStale seals executions left running by a process that died
func (rt *runtime) reconcileStale(log *zap.SugaredLogger) {
	olderThan := rt.cfg.Scheduler.StaleAfter()
	if olderThan <= 0 {
		return
	}
	n, err := rt.executions.ReconcileStale(olderThan)
	if err != nil {
		log.Warnw("Failed to reconcile stale executions", logger.FieldError, err)
		return
	}
	if n > 0 {
		log.Infow("Sealed abandoned executions", logger.FieldCount, n)
	}
}
