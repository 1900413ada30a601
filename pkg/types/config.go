package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FeedConfig holds settings for the arXiv feed fetcher.
type FeedConfig struct {
	HTTPConfig `yaml:",inline"`

	// Categories lists the arXiv category codes fetched when a refresh is
	// invoked without an explicit category set.
	Categories []string `json:"categories" yaml:"categories"`

	// MaxResultsPerCategory caps the number of entries taken per category
	// listing (default 25).
	MaxResultsPerCategory int `json:"max_results_per_category" yaml:"max_results_per_category"`
}

// FullTextConfig holds settings for the PDF full-text fetcher.
type FullTextConfig struct {
	HTTPConfig `yaml:",inline"`
}

// LLMConfig holds settings for the summarizer's chat API calls.
// An empty APIKey disables summarization entirely; records then carry the
// "not-run" sentinel instead of a digest.
type LLMConfig struct {
	// APIKey authenticates against the chat completions endpoint.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Model is the chat model identifier (e.g. "qwen-plus").
	Model string `json:"model" yaml:"model"`

	// BaseURL is an OpenAI-compatible API root, without the
	// /chat/completions suffix.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Timeout is the per-call HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Language is the target language tag for digests (e.g. "zh").
	Language string `json:"language" yaml:"language"`

	// BulletPoints is the number of bullet points requested in the final
	// digest (default 5).
	BulletPoints int `json:"bullet_points" yaml:"bullet_points"`

	// ChunkChars is the chunk window size in characters for long
	// documents. Values below 1000 are clamped up to 1000.
	ChunkChars int `json:"chunk_chars" yaml:"chunk_chars"`

	// ChunkOverlap is the character overlap between consecutive chunks,
	// clamped to at most half the chunk size.
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// MaxChunks caps how many chunks are sent for partial digests (default 6).
	MaxChunks int `json:"max_chunks" yaml:"max_chunks"`

	// MaxRetries is the number of attempts per chat call (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// StoreConfig holds settings for the SQLite paper store.
type StoreConfig struct {
	// Path is the SQLite database file path (e.g. "papers.sqlite3").
	Path string `json:"path" yaml:"path"`

	// BusyTimeout is the SQLite busy handler timeout (default 30s).
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout"`

	// JournalMode is the SQLite journal mode (default "WAL").
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`
}

// ServerConfig holds settings for the read API server.
type ServerConfig struct {
	// Addr is the listen address (e.g. ":8000").
	Addr string `json:"addr" yaml:"addr"`

	// AdminToken, when set, is required in the X-Admin-Token header of
	// POST /api/refresh.
	AdminToken string `json:"admin_token,omitempty" yaml:"admin_token,omitempty"`
}

// ScheduleConfig holds settings for the daily refresh trigger.
type ScheduleConfig struct {
	// Enabled turns the scheduler on for the serve command.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Hour and Minute set the daily refresh time in Timezone.
	Hour   int `json:"hour" yaml:"hour"`
	Minute int `json:"minute" yaml:"minute"`

	// Timezone is an IANA zone name (default "Asia/Shanghai").
	Timezone string `json:"timezone" yaml:"timezone"`
}

// Config groups all component configurations. It is constructed once at
// process start and passed by value into every component constructor.
type Config struct {
	Feed     FeedConfig     `json:"feed" yaml:"feed"`
	FullText FullTextConfig `json:"full_text" yaml:"full_text"`
	LLM      LLMConfig      `json:"llm" yaml:"llm"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Schedule ScheduleConfig `json:"schedule" yaml:"schedule"`
}
