package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "SCOUT_RADAR_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	githubTokenEnv    = "GITHUB_TOKEN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	ledgerPathEnv     = "SCOUT_LEDGER_PATH"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	GitHub     GitHubConfig     `yaml:"github"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Freshness  FreshnessConfig  `yaml:"freshness"`
	Filter     FilterConfig     `yaml:"filter"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Sources    []SourceConfig   `yaml:"sources"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the optional Postgres archive connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines loop mode; when Loop is false the process runs the
// pipeline once and exits (external scheduling).
type SchedulerConfig struct {
	Loop          bool `yaml:"loop"`
	IntervalHours int  `yaml:"intervalHours"`
}

// GitHubConfig wires the search/metadata source.
type GitHubConfig struct {
	Token            string `yaml:"token"`
	APIBaseURL       string `yaml:"apiBaseUrl"`
	TrendingURL      string `yaml:"trendingUrl"`
	PerPage          int    `yaml:"perPage"`
	MinRateRemaining int    `yaml:"minRateRemaining"`
}

// ClassifierConfig defines how to contact the relevance model.
type ClassifierConfig struct {
	APIKey       string `yaml:"apiKey"`
	Model        string `yaml:"model"`
	BatchSize    int    `yaml:"batchSize"`
	MaxRetries   int    `yaml:"maxRetries"`
	Fallback     string `yaml:"fallback"` // "accept" or "reject" on service failure
	SystemPrompt string `yaml:"systemPrompt"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LedgerConfig locates the history file and bounds its growth.
type LedgerConfig struct {
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"maxEntries"`
}

// FreshnessConfig sets the rolling age window.
type FreshnessConfig struct {
	MaxAgeDays int `yaml:"maxAgeDays"`
}

// FilterConfig is the candidate filter's versioned policy data: keyword lists
// and thresholds live here, not in code.
type FilterConfig struct {
	Allow          []string `yaml:"allow"`
	Deny           []string `yaml:"deny"`
	BlockedScripts []string `yaml:"blockedScripts"`
	MinStars       int      `yaml:"minStars"`
	DefaultAccept  bool     `yaml:"defaultAccept"`
}

// PipelineConfig bounds one run's output and paces external calls.
type PipelineConfig struct {
	PostCap          int `yaml:"postCap"`
	PerSourceCap     int `yaml:"perSourceCap"`
	PostDelaySeconds int `yaml:"postDelaySeconds"`
}

// SourceConfig describes a single tracked source and its polling strategy.
type SourceConfig struct {
	Name     string `yaml:"name"`
	Strategy string `yaml:"strategy"`
	Query    string `yaml:"query"`
	Owner    string `yaml:"owner"`
	Repo     string `yaml:"repo"`
	Priority int    `yaml:"priority"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// Validate reports the first missing required setting. Called once at
// startup; a failure aborts before any external call.
func (c Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("missing required setting: telegram bot token (%s)", telegramTokenEnv)
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("missing required setting: telegram chat id (%s)", telegramChatIDEnv)
	}
	if c.Classifier.APIKey == "" {
		return fmt.Errorf("missing required setting: classifier api key (%s)", anthropicKeyEnv)
	}
	if c.Classifier.Fallback != "accept" && c.Classifier.Fallback != "reject" {
		return fmt.Errorf("classifier fallback must be %q or %q, got %q", "accept", "reject", c.Classifier.Fallback)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv(anthropicKeyEnv); v != "" {
		c.Classifier.APIKey = v
	}

	if v := os.Getenv(githubTokenEnv); v != "" {
		c.GitHub.Token = v
	}

	if v := os.Getenv(ledgerPathEnv); v != "" {
		c.Ledger.Path = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.Loop {
		base.Scheduler.Loop = true
	}
	if override.Scheduler.IntervalHours > 0 {
		base.Scheduler.IntervalHours = override.Scheduler.IntervalHours
	}

	if override.GitHub.Token != "" {
		base.GitHub.Token = override.GitHub.Token
	}
	if override.GitHub.APIBaseURL != "" {
		base.GitHub.APIBaseURL = override.GitHub.APIBaseURL
	}
	if override.GitHub.TrendingURL != "" {
		base.GitHub.TrendingURL = override.GitHub.TrendingURL
	}
	if override.GitHub.PerPage > 0 {
		base.GitHub.PerPage = override.GitHub.PerPage
	}
	if override.GitHub.MinRateRemaining > 0 {
		base.GitHub.MinRateRemaining = override.GitHub.MinRateRemaining
	}

	if override.Classifier.APIKey != "" {
		base.Classifier.APIKey = override.Classifier.APIKey
	}
	if override.Classifier.Model != "" {
		base.Classifier.Model = override.Classifier.Model
	}
	if override.Classifier.BatchSize > 0 {
		base.Classifier.BatchSize = override.Classifier.BatchSize
	}
	if override.Classifier.MaxRetries > 0 {
		base.Classifier.MaxRetries = override.Classifier.MaxRetries
	}
	if override.Classifier.Fallback != "" {
		base.Classifier.Fallback = override.Classifier.Fallback
	}
	if override.Classifier.SystemPrompt != "" {
		base.Classifier.SystemPrompt = override.Classifier.SystemPrompt
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}

	if override.Ledger.Path != "" {
		base.Ledger.Path = override.Ledger.Path
	}
	if override.Ledger.MaxEntries > 0 {
		base.Ledger.MaxEntries = override.Ledger.MaxEntries
	}

	if override.Freshness.MaxAgeDays > 0 {
		base.Freshness.MaxAgeDays = override.Freshness.MaxAgeDays
	}

	if len(override.Filter.Allow) > 0 {
		base.Filter.Allow = override.Filter.Allow
	}
	if len(override.Filter.Deny) > 0 {
		base.Filter.Deny = override.Filter.Deny
	}
	if len(override.Filter.BlockedScripts) > 0 {
		base.Filter.BlockedScripts = override.Filter.BlockedScripts
	}
	if override.Filter.MinStars > 0 {
		base.Filter.MinStars = override.Filter.MinStars
	}
	if override.Filter.DefaultAccept {
		base.Filter.DefaultAccept = true
	}

	if override.Pipeline.PostCap > 0 {
		base.Pipeline.PostCap = override.Pipeline.PostCap
	}
	if override.Pipeline.PerSourceCap > 0 {
		base.Pipeline.PerSourceCap = override.Pipeline.PerSourceCap
	}
	if override.Pipeline.PostDelaySeconds > 0 {
		base.Pipeline.PostDelaySeconds = override.Pipeline.PostDelaySeconds
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{Loop: false, IntervalHours: 6},
		GitHub: GitHubConfig{
			APIBaseURL:       "https://api.github.com",
			TrendingURL:      "https://github.com/trending",
			PerPage:          10,
			MinRateRemaining: 5,
		},
		Classifier: ClassifierConfig{
			Model:      "claude-3-5-haiku-latest",
			BatchSize:  4,
			MaxRetries: 2,
			Fallback:   "reject",
			SystemPrompt: "You review GitHub repositories for an internet-censorship-circumvention " +
				"monitoring channel. Only real tools, scripts, or useful routing/domain lists count. " +
				"Old forks, student homework, proxy dumps and ads do not.",
		},
		Ledger:    LedgerConfig{Path: "scout_history.json", MaxEntries: 3000},
		Freshness: FreshnessConfig{MaxAgeDays: 3},
		Filter: FilterConfig{
			Allow: []string{
				"dpi", "vless", "reality", "hysteria", "sing-box", "xray",
				"antizapret", "zapret", "geoip", "circumvention", "obfuscation",
				"shadowsocks", "trojan", "wireguard", "v2ray", "tunnel",
			},
			Deny: []string{
				"tutorial", "course", "homework", "awesome list", "interview",
				"shop", "store", "game", "wallpaper", "cheat",
			},
			BlockedScripts: []string{"Han", "Hangul", "Hiragana", "Katakana", "Thai"},
			MinStars:       0,
			DefaultAccept:  false,
		},
		Pipeline: PipelineConfig{PostCap: 5, PerSourceCap: 3, PostDelaySeconds: 3},
		Sources: []SourceConfig{
			{Name: "DPI Bypass & Anti-Censorship", Strategy: "search", Query: "topic:dpi topic:circumvention", Priority: 1},
			{Name: "Next-Gen VPN Protocols", Strategy: "search", Query: "vless reality hysteria2 sing-box", Priority: 2},
			{Name: "Routing Lists (Russia/China)", Strategy: "search", Query: "antizapret russia whitelist geoip", Priority: 3},
			{Name: "Tunneling Tools", Strategy: "search", Query: "tunnel obfuscation", Priority: 4},
		},
	}
}
