// -- internal/config/config.go --
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object, populated from config.yaml,
// environment variables (PILOT_ prefix) and flags via viper.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Server    ServerConfig    `mapstructure:"server"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
}

// LoggerConfig controls the zap logger and its rotating file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
	Colors      bool   `mapstructure:"colors"`
}

// LLMModelConfig describes a single Gemini model endpoint.
type LLMModelConfig struct {
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Endpoint    string        `mapstructure:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout"`
	Temperature float64       `mapstructure:"temperature"`
	TopP        float64       `mapstructure:"top_p"`
	TopK        int           `mapstructure:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// LLMConfig routes the fast and powerful model tiers.
type LLMConfig struct {
	Fast     LLMModelConfig `mapstructure:"fast"`
	Powerful LLMModelConfig `mapstructure:"powerful"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless"`
	Viewport        map[string]int `mapstructure:"viewport"`
	SettleTimeout   time.Duration  `mapstructure:"settle_timeout"`
	SettleDelay     time.Duration  `mapstructure:"settle_delay"`
	NavigateTimeout time.Duration  `mapstructure:"navigate_timeout"`
	// ScreenshotMaxBytes triggers JPEG re-encoding of oversized PNG captures.
	ScreenshotMaxBytes int `mapstructure:"screenshot_max_bytes"`
}

// ViewportWidth returns the configured viewport width.
func (b BrowserConfig) ViewportWidth() int { return b.Viewport["width"] }

// ViewportHeight returns the configured viewport height.
func (b BrowserConfig) ViewportHeight() int { return b.Viewport["height"] }

// SafetyConfig is the session scope enforced by the safety policy.
type SafetyConfig struct {
	AllowedDomains          []string      `mapstructure:"allowed_domains"`
	BlockedDomains          []string      `mapstructure:"blocked_domains"`
	BlockedKeywords         []string      `mapstructure:"blocked_keywords"`
	BlockedURLPatterns      []string      `mapstructure:"blocked_url_patterns"`
	MaxActions              int           `mapstructure:"max_actions"`
	MaxTokens               int           `mapstructure:"max_tokens"`
	SessionTimeout          time.Duration `mapstructure:"session_timeout"`
	RequireStepConfirmation bool          `mapstructure:"require_step_confirmation"`
	ViolationLog            string        `mapstructure:"violation_log"`
}

// AgentConfig bounds the supervision loops.
type AgentConfig struct {
	MaxTurnsPerStep int           `mapstructure:"max_turns_per_step"`
	AnswerTimeout   time.Duration `mapstructure:"answer_timeout"`
	AutoApprove     bool          `mapstructure:"auto_approve"`
}

// ServerConfig controls the HTTP control surface.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ArtifactsConfig locates on-disk outputs.
type ArtifactsConfig struct {
	ErrorDir string `mapstructure:"error_dir"`
}

// SetDefaults registers every default value on the provided viper instance.
// Flags and environment variables override these.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors", true)

	v.SetDefault("llm.fast.model", "gemini-2.5-flash")
	v.SetDefault("llm.fast.api_timeout", 60*time.Second)
	v.SetDefault("llm.fast.temperature", 0.2)
	v.SetDefault("llm.fast.top_p", 0.95)
	v.SetDefault("llm.fast.max_tokens", 8192)
	v.SetDefault("llm.powerful.model", "gemini-2.5-computer-use-preview-10-2025")
	v.SetDefault("llm.powerful.api_timeout", 120*time.Second)
	v.SetDefault("llm.powerful.temperature", 0.4)
	v.SetDefault("llm.powerful.top_p", 0.95)
	v.SetDefault("llm.powerful.max_tokens", 8192)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport", map[string]int{"width": 1440, "height": 900})
	v.SetDefault("browser.settle_timeout", 3*time.Second)
	v.SetDefault("browser.settle_delay", 300*time.Millisecond)
	v.SetDefault("browser.navigate_timeout", 30*time.Second)
	v.SetDefault("browser.screenshot_max_bytes", 900_000)

	v.SetDefault("safety.allowed_domains", []string{})
	v.SetDefault("safety.blocked_domains", defaultBlockedDomains)
	v.SetDefault("safety.blocked_keywords", defaultBlockedKeywords)
	v.SetDefault("safety.blocked_url_patterns", defaultBlockedURLPatterns)
	v.SetDefault("safety.max_actions", 100)
	v.SetDefault("safety.max_tokens", 200_000)
	v.SetDefault("safety.session_timeout", 30*time.Minute)
	v.SetDefault("safety.require_step_confirmation", false)
	v.SetDefault("safety.violation_log", "safety_violations.log")

	v.SetDefault("agent.max_turns_per_step", 5)
	v.SetDefault("agent.answer_timeout", 300*time.Second)
	v.SetDefault("agent.auto_approve", false)

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("artifacts.error_dir", "errors")
}

// NewConfigFromViper unmarshals and validates a Config.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.resolveAPIKeys()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveAPIKeys falls back to the conventional environment variable when the
// config file carries no key.
func (c *Config) resolveAPIKeys() {
	if env := os.Getenv("GEMINI_API_KEY"); env != "" {
		if c.LLM.Fast.APIKey == "" {
			c.LLM.Fast.APIKey = env
		}
		if c.LLM.Powerful.APIKey == "" {
			c.LLM.Powerful.APIKey = env
		}
	}
}

// Validate checks invariants that viper cannot express.
func (c *Config) Validate() error {
	if c.Browser.ViewportWidth() <= 0 || c.Browser.ViewportHeight() <= 0 {
		return fmt.Errorf("browser.viewport must have positive width and height")
	}
	if c.Safety.MaxActions <= 0 {
		return fmt.Errorf("safety.max_actions must be positive")
	}
	if c.Safety.MaxTokens <= 0 {
		return fmt.Errorf("safety.max_tokens must be positive")
	}
	if c.Safety.SessionTimeout <= 0 {
		return fmt.Errorf("safety.session_timeout must be positive")
	}
	if c.Agent.MaxTurnsPerStep <= 0 {
		return fmt.Errorf("agent.max_turns_per_step must be positive")
	}
	if c.LLM.Fast.Model == "" || c.LLM.Powerful.Model == "" {
		return fmt.Errorf("llm model names must not be empty")
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	return nil
}

// Baseline blocklists. These guard against financial and destructive surfaces
// regardless of what the session scope allows.
var (
	defaultBlockedDomains = []string{
		"paypal.com",
		"stripe.com",
		"*bank*",
		"chase.com",
		"wellsfargo.com",
		"coinbase.com",
		"binance.com",
		"*crypto*",
	}

	defaultBlockedKeywords = []string{
		"pay now",
		"confirm purchase",
		"place order",
		"complete purchase",
		"checkout",
		"enter card",
		"card number",
		"cvv",
		"delete account",
		"close account",
		"confirm deletion",
		"wire transfer",
		"send money",
	}

	defaultBlockedURLPatterns = []string{
		"*checkout*",
		"*payment*",
		"*billing*",
		"*/pay/*",
		"*purchase*",
	}
)
