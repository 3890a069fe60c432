package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete service configuration
// The structure matches the config.yaml file and can be overridden by environment variables

type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Log      LogConfig      `json:"log" mapstructure:"log"`
	CORS     CORSConfig     `json:"cors" mapstructure:"cors"`
	LLM      LLMConfig      `json:"llm" mapstructure:"llm"`
	Analysis AnalysisConfig `json:"analysis" mapstructure:"analysis"`
	Storage  StorageConfig  `json:"storage" mapstructure:"storage"`
	Ledger   LedgerConfig   `json:"ledger" mapstructure:"ledger"`
	Billing  BillingConfig  `json:"billing" mapstructure:"billing"`
	Audit    AuditConfig    `json:"audit" mapstructure:"audit"`
}

// ServerConfig contains server-specific configuration

type ServerConfig struct {
	Addr           string        `json:"addr" mapstructure:"addr"`
	ReadTimeout    time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimit      float64       `json:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int           `json:"rate_burst" mapstructure:"rate_burst"`
	MaxUploadBytes int64         `json:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// CORSConfig holds the frontend origin, either as an exact string or a regex

type CORSConfig struct {
	FrontendURL      string `json:"frontend_url" mapstructure:"frontend_url"`
	FrontendURLRegex string `json:"frontend_url_regex" mapstructure:"frontend_url_regex"`
}

// LLMConfig contains LLM provider configuration

type LLMConfig struct {
	Provider    string        `json:"provider" mapstructure:"provider"`
	APIKey      string        `json:"api_key" mapstructure:"api_key"`
	Model       string        `json:"model" mapstructure:"model"`
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// AnalysisConfig bounds the text sent to the model and selects the error policy per endpoint

type AnalysisConfig struct {
	AnalysisChars int               `json:"analysis_chars" mapstructure:"analysis_chars"`
	EmailChars    int               `json:"email_chars" mapstructure:"email_chars"`
	QuestionChars int               `json:"question_chars" mapstructure:"question_chars"`
	CacheTTL      time.Duration     `json:"cache_ttl" mapstructure:"cache_ttl"`
	Policies      map[string]string `json:"policies" mapstructure:"policies"`
}

type StorageConfig struct {
	Backend           string      `json:"backend" mapstructure:"backend"`
	DataDir           string      `json:"data_dir" mapstructure:"data_dir"`
	UploadsDir        string      `json:"uploads_dir" mapstructure:"uploads_dir"`
	ReadOnlyFS        bool        `json:"read_only_fs" mapstructure:"read_only_fs"`
	AllowedExtensions []string    `json:"allowed_extensions" mapstructure:"allowed_extensions"`
	MinIO             MinIOConfig `json:"minio" mapstructure:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
	AccessKey string `json:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	UseSSL    bool   `json:"use_ssl" mapstructure:"use_ssl"`
}

// LedgerConfig selects where credit balances and processed webhook ids live

type LedgerConfig struct {
	Backend string `json:"backend" mapstructure:"backend"`
	DSN     string `json:"dsn" mapstructure:"dsn"`
}

type BillingConfig struct {
	WebhookSecret    string         `json:"webhook_secret" mapstructure:"webhook_secret"`
	WebhookTolerance time.Duration  `json:"webhook_tolerance" mapstructure:"webhook_tolerance"`
	ProductID        string         `json:"product_id" mapstructure:"product_id"`
	CheckoutBase     string         `json:"checkout_base" mapstructure:"checkout_base"`
	ReturnURL        string         `json:"return_url" mapstructure:"return_url"`
	Plans            map[string]int `json:"plans" mapstructure:"plans"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// legacyEnv maps config keys to the environment variable names the
// deployment already uses.
var legacyEnv = map[string][]string{
	"server.addr":              {"PORT"},
	"llm.api_key":              {"GEMINI_API_KEY", "OPENAI_API_KEY"},
	"llm.model":                {"GEMINI_MODEL"},
	"cors.frontend_url":        {"FRONTEND_URL"},
	"cors.frontend_url_regex":  {"FRONTEND_URL_REGEX"},
	"storage.data_dir":         {"DATA_DIR"},
	"storage.uploads_dir":      {"UPLOAD_DIR"},
	"storage.read_only_fs":     {"READ_ONLY_FS"},
	"billing.webhook_secret":   {"DODO_WEBHOOK_SECRET"},
	"billing.product_id":       {"DODO_PRO_PRODUCT_ID"},
	"billing.checkout_base":    {"DODO_CHECKOUT_BASE"},
	"billing.return_url":       {"DODO_RETURN_URL"},
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	cfg, _, err := load(viper.New())
	return cfg, err
}

func load(v *viper.Viper) (*Config, *viper.Viper, error) {
	// Load .env first (ignore error if not present)
	_ = godotenv.Load()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.contractai")
	v.SetEnvPrefix("CONTRACTAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, names := range legacyEnv {
		args := append([]string{key, "CONTRACTAI_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		_ = v.BindEnv(args...)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("no config file found, using defaults")
		} else {
			return nil, nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, err
	}
	cfg.finalize()
	return &cfg, v, nil
}

// finalize normalizes values that viper cannot express directly.
func (c *Config) finalize() {
	if port := c.Server.Addr; port != "" && !strings.Contains(port, ":") {
		c.Server.Addr = ":" + port
	}
	if os.Getenv("VERCEL") != "" {
		c.Storage.ReadOnlyFS = true
	}
	if c.Storage.ReadOnlyFS {
		base := filepath.Join(os.TempDir(), "contractai")
		c.Storage.DataDir = filepath.Join(base, "data")
		c.Storage.UploadsDir = filepath.Join(base, "uploads")
	}
	c.Storage.DataDir = resolvePath(c.Storage.DataDir)
	c.Storage.UploadsDir = resolvePath(c.Storage.UploadsDir)
	if c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(c.Storage.DataDir, "audit.db")
	}
	c.Audit.Path = resolvePath(c.Audit.Path)
	if c.Ledger.Backend == "sqlite" && c.Ledger.DSN == "" {
		c.Ledger.DSN = filepath.Join(c.Storage.DataDir, "ledger.db")
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	for i, ext := range c.Storage.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Storage.AllowedExtensions[i] = ext
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.rate_limit", 2)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.max_upload_bytes", 20<<20)

	v.SetDefault("log.level", "info")

	v.SetDefault("cors.frontend_url", "http://localhost:3000")

	// LLM defaults
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.2)

	v.SetDefault("analysis.analysis_chars", 12000)
	v.SetDefault("analysis.email_chars", 4000)
	v.SetDefault("analysis.question_chars", 12000)
	v.SetDefault("analysis.cache_ttl", "30m")
	v.SetDefault("analysis.policies", map[string]string{
		"analyze":  "propagate",
		"upload":   "degrade",
		"email":    "degrade",
		"question": "degrade",
	})

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.uploads_dir", "./uploads")
	v.SetDefault("storage.allowed_extensions", []string{".pdf", ".docx", ".txt"})
	v.SetDefault("storage.minio.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.minio.bucket", "contracts")

	v.SetDefault("ledger.backend", "file")

	v.SetDefault("billing.webhook_tolerance", "5m")
	v.SetDefault("billing.checkout_base", "https://checkout.dodopayments.com/buy")

	v.SetDefault("audit.enabled", true)
}

// resolvePath resolves ~ to home directory and cleans the path
func resolvePath(p string) string {
	if p == "" {
		return p
	}
	if p[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return filepath.Clean(p)
}

// LLMConfigured reports whether a model credential is present.
func (c *Config) LLMConfigured() bool {
	return c.LLM.APIKey != ""
}
