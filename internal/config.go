package internal

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName names the XDG directories, env prefix and MCP server.
const AppName = "bentsblog"

// Config holds application settings
type Config struct {
	OpenAIAPIKey  string
	YouTubeAPIKey string

	// LLM
	ReorganizeModel       string        `validate:"required"`
	BlogModel             string        `validate:"required"`
	ReorganizeMaxTokens   int64         `validate:"min=1"`
	BlogMaxTokens         int64         `validate:"min=1"`
	BlogTranscriptChars   int           `validate:"min=1"`
	ChunkSize             int           `validate:"min=1"`
	ReorganizeConcurrency int           `validate:"min=1"`
	LLMTimeout            time.Duration `validate:"gt=0"`
	WhisperTimeout        time.Duration `validate:"gt=0"`
	ReorganizePrompt      string
	BlogPrompt            string

	// Transcript retrieval
	Methods       []string      `validate:"dive,oneof=direct proxy browser relay headers ytdlp whisper"`
	Languages     []string      `validate:"min=1,dive,required"`
	DelayMin      time.Duration `validate:"gte=0"`
	DelayMax      time.Duration `validate:"gtefield=DelayMin"`
	MethodTimeout time.Duration `validate:"gte=0"`
	HTTPTimeout   time.Duration `validate:"gte=0"`
	ProxyListURL  string        `validate:"omitempty,url"`
	MaxProxies    int           `validate:"gte=0"`
	ProxyTimeout  time.Duration `validate:"gte=0"`
	RelayURL      string
	RelayAPIKey   string
	BrowserPath   string
	BrowserWait   time.Duration `validate:"gte=0"`

	// Comments and caching
	CommentLimit    int           `validate:"gte=0"`
	MaxCommentPages int           `validate:"gte=0"`
	CacheTTL        time.Duration `validate:"gte=0"`
	RedisURL        string        `validate:"omitempty,url"`

	ServeAddr     string `validate:"required"`
	Verbose       bool
	Quiet         bool
	MCPLogEnabled bool

	// Fixed XDG paths (not configurable)
	ConfigDir string
	DataDir   string
	CacheDir  string
	TempDir   string
}

//go:embed defaults/config.toml defaults/reorganize.txt defaults/blog.txt
var defaultFS embed.FS

// WhisperLimit is the maximum file size accepted by OpenAI's Whisper API (25 MiB)
const WhisperLimit int64 = 25 << 20

// ensureDefaultFile copies an embedded default into dir unless a file already exists there
func ensureDefaultFile(dir, name, description string) (bool, error) {
	filePath := filepath.Join(dir, name)
	if FileExists(filePath) {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("creating config directory: %w", err)
	}

	content, err := defaultFS.ReadFile("defaults/" + name)
	if err != nil {
		return false, fmt.Errorf("reading embedded default %s: %w", description, err)
	}
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return false, fmt.Errorf("writing default %s: %w", description, err)
	}
	return true, nil
}

// EnsureDefaultFiles writes the default config and prompt templates into
// configDir when missing, returning the paths it created.
func EnsureDefaultFiles(configDir string) ([]string, error) {
	files := []struct{ name, description string }{
		{"config.toml", "configuration"},
		{"reorganize.txt", "reorganize prompt"},
		{"blog.txt", "blog prompt"},
	}

	var created []string
	var errs []error
	for _, f := range files {
		ok, err := ensureDefaultFile(configDir, f.name, f.description)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			created = append(created, filepath.Join(configDir, f.name))
		}
	}
	return created, errors.Join(errs...)
}

// NewViper returns a viper instance with defaults, the XDG config search path
// and environment bindings applied.
func NewViper(configDir string) *viper.Viper {
	v := viper.New()

	v.SetDefault("reorganize_model", "gpt-4o-mini")
	v.SetDefault("blog_model", "gpt-4o-mini")
	v.SetDefault("reorganize_max_tokens", 2000)
	v.SetDefault("blog_max_tokens", 1000)
	v.SetDefault("blog_transcript_chars", 2000)
	v.SetDefault("chunk_size", 10000)
	v.SetDefault("reorganize_concurrency", 4)
	v.SetDefault("llm_timeout", 2*time.Minute)
	v.SetDefault("whisper_timeout", 10*time.Minute)
	v.SetDefault("reorganize_prompt", "")
	v.SetDefault("blog_prompt", "")

	v.SetDefault("methods", []string{"direct", "proxy", "browser", "relay", "headers"})
	v.SetDefault("languages", []string{"en"})
	v.SetDefault("delay_min", time.Second)
	v.SetDefault("delay_max", 3*time.Second)
	v.SetDefault("method_timeout", 60*time.Second)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("proxy_list_url", "")
	v.SetDefault("max_proxies", 20)
	v.SetDefault("proxy_timeout", 10*time.Second)
	v.SetDefault("relay_url", "")
	v.SetDefault("relay_api_key", "")
	v.SetDefault("browser_path", "")
	v.SetDefault("browser_wait", 10*time.Second)

	v.SetDefault("comment_limit", 5)
	v.SetDefault("max_comment_pages", 10)
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("redis_url", "")

	v.SetDefault("serve_addr", ":8080")
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("mcp_log", false)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("youtube_api_key", "YOUTUBE_API_KEY")

	return v
}

// LoadConfig reads the config file (if any) into v and decodes it into a validated Config.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	configDir := filepath.Join(xdg.ConfigHome, AppName)
	dataDir := filepath.Join(xdg.DataHome, AppName)
	cacheDir := filepath.Join(xdg.CacheHome, AppName)

	config := &Config{
		OpenAIAPIKey:  v.GetString("openai_api_key"),
		YouTubeAPIKey: v.GetString("youtube_api_key"),

		ReorganizeModel:       v.GetString("reorganize_model"),
		BlogModel:             v.GetString("blog_model"),
		ReorganizeMaxTokens:   v.GetInt64("reorganize_max_tokens"),
		BlogMaxTokens:         v.GetInt64("blog_max_tokens"),
		BlogTranscriptChars:   v.GetInt("blog_transcript_chars"),
		ChunkSize:             v.GetInt("chunk_size"),
		ReorganizeConcurrency: v.GetInt("reorganize_concurrency"),
		LLMTimeout:            v.GetDuration("llm_timeout"),
		WhisperTimeout:        v.GetDuration("whisper_timeout"),
		ReorganizePrompt:      v.GetString("reorganize_prompt"),
		BlogPrompt:            v.GetString("blog_prompt"),

		Methods:       v.GetStringSlice("methods"),
		Languages:     v.GetStringSlice("languages"),
		DelayMin:      v.GetDuration("delay_min"),
		DelayMax:      v.GetDuration("delay_max"),
		MethodTimeout: v.GetDuration("method_timeout"),
		HTTPTimeout:   v.GetDuration("http_timeout"),
		ProxyListURL:  v.GetString("proxy_list_url"),
		MaxProxies:    v.GetInt("max_proxies"),
		ProxyTimeout:  v.GetDuration("proxy_timeout"),
		RelayURL:      v.GetString("relay_url"),
		RelayAPIKey:   v.GetString("relay_api_key"),
		BrowserPath:   v.GetString("browser_path"),
		BrowserWait:   v.GetDuration("browser_wait"),

		CommentLimit:    v.GetInt("comment_limit"),
		MaxCommentPages: v.GetInt("max_comment_pages"),
		CacheTTL:        v.GetDuration("cache_ttl"),
		RedisURL:        v.GetString("redis_url"),

		ServeAddr:     v.GetString("serve_addr"),
		Verbose:       v.GetBool("verbose"),
		Quiet:         v.GetBool("quiet"),
		MCPLogEnabled: v.GetBool("mcp_log"),

		ConfigDir: configDir,
		DataDir:   dataDir,
		CacheDir:  cacheDir,
		TempDir:   filepath.Join(cacheDir, "temp_chunks"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// InitConfig loads .env, then the config file and environment into a Config.
// An empty configFile searches the XDG config directory and the working directory.
func InitConfig(configFile string) (*Config, error) {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	v := NewViper(filepath.Join(xdg.ConfigHome, AppName))
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	return LoadConfig(v)
}

// Validate checks the config against its field constraints.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (%s)", msg, fe.Param())
		}
		problems = append(problems, msg)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
