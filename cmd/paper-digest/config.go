package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const defaultUserAgent = "paper-digest/0.1"

func setDefaults() {
	viper.SetDefault("feed.categories", []string{"cs.DC", "cs.OS", "cs.AR"})
	viper.SetDefault("feed.max_results_per_category", 25)
	viper.SetDefault("feed.timeout", 20*time.Second)

	viper.SetDefault("full_text.timeout", 20*time.Second)

	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.model", "qwen-plus")
	viper.SetDefault("llm.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	viper.SetDefault("llm.timeout", 20*time.Second)
	viper.SetDefault("llm.language", "zh")
	viper.SetDefault("llm.bullet_points", 5)
	viper.SetDefault("llm.chunk_chars", 6000)
	viper.SetDefault("llm.chunk_overlap", 500)
	viper.SetDefault("llm.max_chunks", 6)
	viper.SetDefault("llm.max_retries", 3)

	viper.SetDefault("store.path", "papers.sqlite3")
	viper.SetDefault("store.busy_timeout", 30*time.Second)
	viper.SetDefault("store.journal_mode", "WAL")

	viper.SetDefault("server.addr", ":8000")
	viper.SetDefault("server.admin_token", "")

	viper.SetDefault("schedule.enabled", true)
	viper.SetDefault("schedule.hour", 8)
	viper.SetDefault("schedule.minute", 0)
	viper.SetDefault("schedule.timezone", "Asia/Shanghai")
}

// buildConfig assembles the process-wide configuration from viper (file,
// environment, defaults) plus the loaded secrets.
func buildConfig() types.Config {
	var cfg types.Config

	cfg.Feed.Categories = viper.GetStringSlice("feed.categories")
	cfg.Feed.MaxResultsPerCategory = viper.GetInt("feed.max_results_per_category")
	cfg.Feed.Timeout = viper.GetDuration("feed.timeout")
	cfg.Feed.UserAgent = defaultUserAgent

	cfg.FullText.Timeout = viper.GetDuration("full_text.timeout")
	cfg.FullText.UserAgent = defaultUserAgent

	cfg.LLM.APIKey = secretDefault(secrets.LLMAPIKeyFile, viper.GetString("llm.api_key"))
	cfg.LLM.Model = viper.GetString("llm.model")
	cfg.LLM.BaseURL = viper.GetString("llm.base_url")
	cfg.LLM.Timeout = viper.GetDuration("llm.timeout")
	cfg.LLM.Language = viper.GetString("llm.language")
	cfg.LLM.BulletPoints = viper.GetInt("llm.bullet_points")
	cfg.LLM.ChunkChars = viper.GetInt("llm.chunk_chars")
	cfg.LLM.ChunkOverlap = viper.GetInt("llm.chunk_overlap")
	cfg.LLM.MaxChunks = viper.GetInt("llm.max_chunks")
	cfg.LLM.MaxRetries = viper.GetInt("llm.max_retries")

	cfg.Store.Path = viper.GetString("store.path")
	cfg.Store.BusyTimeout = viper.GetDuration("store.busy_timeout")
	cfg.Store.JournalMode = viper.GetString("store.journal_mode")

	cfg.Server.Addr = viper.GetString("server.addr")
	cfg.Server.AdminToken = secretDefault(secrets.AdminTokenFile, viper.GetString("server.admin_token"))

	cfg.Schedule.Enabled = viper.GetBool("schedule.enabled")
	cfg.Schedule.Hour = viper.GetInt("schedule.hour")
	cfg.Schedule.Minute = viper.GetInt("schedule.minute")
	cfg.Schedule.Timezone = viper.GetString("schedule.timezone")

	return cfg
}
