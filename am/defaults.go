package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Storage
	v.SetDefault("database.path", "data/jobs.db")
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("paths.profiles_file", "settings/feeds/profiles.yaml")

	// Scheduler loop
	v.SetDefault("scheduler.poll_interval_seconds", 30)
	v.SetDefault("scheduler.error_backoff_seconds", 60)
	v.SetDefault("scheduler.stale_after_minutes", 120)

	// Overdue runner (cron entry point)
	v.SetDefault("runner.lock_file", "job_execution.lock")
	v.SetDefault("runner.cooldown_seconds", 300)
	v.SetDefault("runner.inter_job_delay_seconds", 10)

	// LLM (Ollama's OpenAI-compatible endpoint)
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.models", map[string]string{
		"default_model":   "llama3.2:3b",
		"broadcast_model": "llama3.2:3b",
	})
	v.SetDefault("llm.timeout_seconds", 300)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.requests_per_minute", 30)

	// Feeds
	v.SetDefault("feeds.timeout_seconds", 30)
	v.SetDefault("feeds.requests_per_minute", 60)
	v.SetDefault("feeds.block_private_ip", false)
	v.SetDefault("feeds.max_content_chars", 2000)
	v.SetDefault("feeds.min_content_chars", 100)

	// Speech
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.command", "edge-tts --voice {voice} --file {text_file} --write-media {output}")
	v.SetDefault("tts.voice", "en-US-GuyNeural")

	// Status/jobs HTTP surface
	v.SetDefault("server.address", "127.0.0.1:8787")
	v.SetDefault("server.allowed_origins", []string{"http://localhost", "http://127.0.0.1"})
}
