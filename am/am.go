// Package am loads the News02 configuration ("I am").
package am

import "time"

// Config represents the News02 configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Server    ServerConfig    `mapstructure:"server"`
}

// DatabaseConfig configures the SQLite job database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PathsConfig configures where artifacts, locks and profiles live
type PathsConfig struct {
	DataDir      string `mapstructure:"data_dir"`      // lock file location
	OutputDir    string `mapstructure:"output_dir"`    // digest markdown and audio
	ProfilesFile string `mapstructure:"profiles_file"` // YAML feed profiles
}

// SchedulerConfig configures the in-process scheduler loop
type SchedulerConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"` // default 30
	ErrorBackoffSeconds int `mapstructure:"error_backoff_seconds"` // default 60
	StaleAfterMinutes   int `mapstructure:"stale_after_minutes"`   // running executions older than this are sealed failed at startup
}

// RunnerConfig configures the cron-style overdue job runner
type RunnerConfig struct {
	LockFile             string `mapstructure:"lock_file"`               // relative to paths.data_dir unless absolute
	CooldownSeconds      int    `mapstructure:"cooldown_seconds"`        // skip jobs that ran this recently (default 300)
	InterJobDelaySeconds int    `mapstructure:"inter_job_delay_seconds"` // default 10
}

// LLMConfig configures the OpenAI-compatible inference endpoint (Ollama, LocalAI, ...)
type LLMConfig struct {
	Provider          string            `mapstructure:"provider"` // label written into digest headers
	BaseURL           string            `mapstructure:"base_url"`
	APIKey            string            `mapstructure:"api_key"`
	Models            map[string]string `mapstructure:"models"` // model config id -> concrete model name
	TimeoutSeconds    int               `mapstructure:"timeout_seconds"`
	Temperature       float64           `mapstructure:"temperature"`
	MaxTokens         int               `mapstructure:"max_tokens"`
	MaxRetries        int               `mapstructure:"max_retries"`
	RequestsPerMinute int               `mapstructure:"requests_per_minute"` // 0 = unlimited
}

// FeedsConfig configures RSS fetching and article extraction
type FeedsConfig struct {
	TimeoutSeconds    int  `mapstructure:"timeout_seconds"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"` // 0 = unlimited
	BlockPrivateIP    bool `mapstructure:"block_private_ip"`
	MaxContentChars   int  `mapstructure:"max_content_chars"`
	MinContentChars   int  `mapstructure:"min_content_chars"`
}

// TTSConfig configures speech synthesis
type TTSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Command string `mapstructure:"command"` // template with {voice}, {text_file}, {output}
	Voice   string `mapstructure:"voice"`
}

// ServerConfig configures the status/jobs HTTP surface of `scheduler start`
type ServerConfig struct {
	Address        string   `mapstructure:"address"`         // empty disables the server
	AllowedOrigins []string `mapstructure:"allowed_origins"` // origin prefixes for CORS and websockets
}

// PollInterval returns the scheduler poll interval
func (c SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// ErrorBackoff returns the scheduler sleep after a failed tick
func (c SchedulerConfig) ErrorBackoff() time.Duration {
	return time.Duration(c.ErrorBackoffSeconds) * time.Second
}

// StaleAfter returns the age past which a running execution is considered abandoned
func (c SchedulerConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// Timeout returns the per-request LLM timeout
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the per-request feed and article timeout
func (c FeedsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Cooldown returns the recent-run window the overdue runner skips
func (c RunnerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// InterJobDelay returns the pause between overdue jobs
func (c RunnerConfig) InterJobDelay() time.Duration {
	return time.Duration(c.InterJobDelaySeconds) * time.Second
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
