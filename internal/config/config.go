package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	Session    SessionConfig    `mapstructure:"session"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Workspace  WorkspaceConfig  `mapstructure:"workspace"`
	Generation GenerationConfig `mapstructure:"generation"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Settings   SettingsConfig   `mapstructure:"settings"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type StorageConfig struct {
	Type           string        `mapstructure:"type"` // memory | disk | sqlite
	DataDir        string        `mapstructure:"data_dir"`
	CacheSize      int           `mapstructure:"cache_size"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
}

type WorkspaceConfig struct {
	// RequireAuth rejects generation without an X-User-ID identity.
	RequireAuth bool `mapstructure:"require_auth"`
}

type GenerationConfig struct {
	// Timeout of zero disables the deadline.
	Timeout         time.Duration `mapstructure:"timeout"`
	Temperature     float32       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	PreviewInterval time.Duration `mapstructure:"preview_interval"`
	Heartbeat       time.Duration `mapstructure:"heartbeat"`
	MaxPushBack     int           `mapstructure:"max_push_back"`
	MaxPendingBytes int           `mapstructure:"max_pending_bytes"`
}

type ProvidersConfig struct {
	Default   string          `mapstructure:"default"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	// Debug logs every outgoing provider request with credentials redacted.
	Debug     bool            `mapstructure:"debug"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	GeminiSDK GeminiConfig    `mapstructure:"gemini_sdk"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Doubao    DoubaoConfig    `mapstructure:"doubao"`
	Qwen      QwenConfig      `mapstructure:"qwen"`
	Proxy     ProxyClient     `mapstructure:"proxy"`
	Mock      MockConfig      `mapstructure:"mock"`
}

type GeminiConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type AnthropicConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Version string `mapstructure:"version"`
}

type OpenAIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type DoubaoConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type QwenConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

// ProxyClient points the "proxy" provider at a deployed generate-code endpoint.
type ProxyClient struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Upstream string `mapstructure:"upstream"`
	// RequireKey makes the client send its own vendor key instead of relying on the server key.
	RequireKey bool `mapstructure:"require_key"`
}

type MockConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Delay   time.Duration `mapstructure:"delay"`
}

// ProxyConfig configures the server side of /functions/v1/generate-code.
type ProxyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Provider     string `mapstructure:"provider"`
	ServerAPIKey string `mapstructure:"server_api_key"`
}

type SettingsConfig struct {
	Path         string `mapstructure:"path"`
	VaultDir     string `mapstructure:"vault_dir"`
	VaultBackend string `mapstructure:"vault_backend"` // file | memory | system
	VaultPass    string `mapstructure:"vault_password"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := load(viper.New(), "")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the YAML file at configPath. A missing file is not an error; defaults
// and environment variables still apply. A .env file next to the working directory is
// loaded first so vendor keys can live outside the YAML.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return load(viper.New(), configPath)
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("SITEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyEnvKeys(cfg)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-User-ID"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Disposition"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cleanup_interval", time.Hour)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_size", 100)
	v.SetDefault("storage.sqlite_path", "./data/projects.db")
	v.SetDefault("storage.backup_interval", 0)

	v.SetDefault("workspace.require_auth", false)

	v.SetDefault("generation.timeout", 0)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_output_tokens", 8192)
	v.SetDefault("generation.preview_interval", 150*time.Millisecond)
	v.SetDefault("generation.heartbeat", 30*time.Second)
	v.SetDefault("generation.max_push_back", 8)
	v.SetDefault("generation.max_pending_bytes", 1<<20)

	for _, name := range []string{"gemini", "gemini_sdk", "anthropic", "openai", "doubao", "qwen"} {
		v.SetDefault("providers."+name+".api_key", "")
	}
	v.SetDefault("providers.default", "gemini")
	v.SetDefault("providers.timeout", 0)
	v.SetDefault("providers.debug", false)
	v.SetDefault("providers.gemini.enabled", true)
	v.SetDefault("providers.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("providers.gemini.model", "gemini-2.0-flash-exp")
	v.SetDefault("providers.gemini_sdk.enabled", true)
	v.SetDefault("providers.gemini_sdk.model", "gemini-2.5-pro")
	v.SetDefault("providers.anthropic.enabled", true)
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("providers.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("providers.anthropic.version", "2023-06-01")
	v.SetDefault("providers.openai.enabled", true)
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.doubao.enabled", false)
	v.SetDefault("providers.doubao.model", "doubao-seed-1-6-250615")
	v.SetDefault("providers.qwen.enabled", false)
	v.SetDefault("providers.qwen.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("providers.qwen.model", "qwen-plus")
	v.SetDefault("providers.qwen.top_p", 0.9)
	v.SetDefault("providers.qwen.timeout", 0)
	v.SetDefault("providers.proxy.enabled", false)
	v.SetDefault("providers.proxy.url", "")
	v.SetDefault("providers.proxy.require_key", false)
	v.SetDefault("providers.proxy.upstream", "gemini")
	v.SetDefault("providers.mock.enabled", false)
	v.SetDefault("providers.mock.delay", 20*time.Millisecond)

	v.SetDefault("proxy.enabled", true)
	v.SetDefault("proxy.provider", "gemini")
	v.SetDefault("proxy.server_api_key", "")

	v.SetDefault("settings.path", "./data/settings.yaml")
	v.SetDefault("settings.vault_dir", "./data/vault")
	v.SetDefault("settings.vault_backend", "file")
	v.SetDefault("settings.vault_password", "sitegen")
}

// applyEnvKeys fills vendor keys from the conventional environment variables when the
// file left them empty.
func applyEnvKeys(cfg *Config) {
	fill := func(dst *string, names ...string) {
		if *dst != "" {
			return
		}
		for _, name := range names {
			if val := os.Getenv(name); val != "" {
				*dst = val
				return
			}
		}
	}

	fill(&cfg.Providers.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	fill(&cfg.Providers.GeminiSDK.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	fill(&cfg.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	fill(&cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	fill(&cfg.Providers.Doubao.APIKey, "DOUBAO_API_KEY", "ARK_API_KEY")
	fill(&cfg.Providers.Qwen.APIKey, "DASHSCOPE_API_KEY", "QWEN_API_KEY")
	fill(&cfg.Proxy.ServerAPIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
}
