package am

import (
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/kliewerdaniel/News02/errors"
)

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path cannot be empty")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir cannot be empty")
	}
	if c.Paths.ProfilesFile == "" {
		return errors.New("paths.profiles_file cannot be empty")
	}

	// Zero intervals would spin the loop
	if c.Scheduler.PollIntervalSeconds <= 0 {
		return errors.Newf("scheduler.poll_interval_seconds must be > 0, got %d", c.Scheduler.PollIntervalSeconds)
	}
	if c.Scheduler.ErrorBackoffSeconds <= 0 {
		return errors.Newf("scheduler.error_backoff_seconds must be > 0, got %d", c.Scheduler.ErrorBackoffSeconds)
	}
	if c.Scheduler.StaleAfterMinutes < 0 {
		return errors.Newf("scheduler.stale_after_minutes must be >= 0, got %d", c.Scheduler.StaleAfterMinutes)
	}

	if c.Runner.LockFile == "" {
		return errors.New("runner.lock_file cannot be empty")
	}
	if c.Runner.CooldownSeconds < 0 {
		return errors.Newf("runner.cooldown_seconds must be >= 0, got %d", c.Runner.CooldownSeconds)
	}
	if c.Runner.InterJobDelaySeconds < 0 {
		return errors.Newf("runner.inter_job_delay_seconds must be >= 0, got %d", c.Runner.InterJobDelaySeconds)
	}

	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url cannot be empty")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.Newf("llm.timeout_seconds must be > 0, got %d", c.LLM.TimeoutSeconds)
	}
	if c.LLM.MaxRetries < 1 {
		return errors.Newf("llm.max_retries must be >= 1, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return errors.Newf("llm.requests_per_minute must be >= 0, got %d", c.LLM.RequestsPerMinute)
	}

	if c.Feeds.RequestsPerMinute < 0 {
		return errors.Newf("feeds.requests_per_minute must be >= 0, got %d", c.Feeds.RequestsPerMinute)
	}
	if c.Feeds.MaxContentChars > 0 && c.Feeds.MinContentChars > c.Feeds.MaxContentChars {
		return errors.Newf("feeds.min_content_chars (%d) exceeds feeds.max_content_chars (%d)",
			c.Feeds.MinContentChars, c.Feeds.MaxContentChars)
	}

	if c.TTS.Enabled {
		if err := validateTTSCommand(c.TTS.Command); err != nil {
			return err
		}
	}

	return nil
}

func validateTTSCommand(command string) error {
	args, err := shellquote.Split(command)
	if err != nil {
		return errors.Wrap(err, "tts.command is not a valid command line")
	}
	if len(args) == 0 {
		return errors.New("tts.command cannot be empty when tts.enabled")
	}
	if !strings.Contains(command, "{output}") {
		return errors.WithHint(
			errors.New("tts.command must reference {output}"),
			"the synthesizer writes audio next to the digest, e.g. --write-media {output}",
		)
	}
	return nil
}
