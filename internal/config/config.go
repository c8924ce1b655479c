package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"lyrics-engine/pkg/lrc"
)

const (
	appName = "lyrics-engine"

	DefaultSocketPath     = "/tmp/lyrics_engine.sock"
	DefaultCheckInterval  = 5 * time.Second
	DefaultLookupTimeout  = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultRaceTimeout    = 15 * time.Second
	DefaultMaxRetries     = 2
	DefaultRetryBackoff   = 300 * time.Millisecond
	DefaultRetryInterval  = 20 * time.Millisecond
	DefaultRetries        = 250
	DefaultRedisTTL       = 7 * 24 * time.Hour
	DefaultBarSignal      = 55 // SIGRTMIN+21，对应 i3blocks 的 signal=21
)

// DefaultProviders 默认启用的歌词来源
var DefaultProviders = []string{"clyrics", "unison", "lrclib", "netease", "yt"}

// DefaultPriority 槽位优先级，越靠前越可信
var DefaultPriority = []string{
	"custom-lyrics",
	"unison-richsynced",
	"lrclib-synced",
	"netease-synced",
	"yt-lyrics",
	"lrclib-plain",
}

func getDefaultCacheDir() string {
	// 优先使用 XDG_CACHE_HOME 环境变量
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "lyrics_cache"
	}
	return filepath.Join(homeDir, ".cache", appName)
}

func getDefaultDataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "lyrics_data"
	}
	return filepath.Join(homeDir, ".local", "share", appName)
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		SocketPath    string `toml:"socket_path"`
		CheckInterval string `toml:"check_interval"`
		CacheDir      string `toml:"cache_dir"`
		PollPlayer    *bool  `toml:"poll_player"`
		StatusFile    string `toml:"status_file"`
		LookupTimeout string `toml:"lookup_timeout"`
		BarProcess    string `toml:"bar_process"`
		BarSignal     int    `toml:"bar_signal"`
		MPRISService  string `toml:"mpris_service"`
	} `toml:"app"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`

	Providers struct {
		Enabled        []string `toml:"enabled"`
		Priority       []string `toml:"priority"`
		RequestTimeout string   `toml:"request_timeout"`
		RaceTimeout    string   `toml:"race_timeout"`
		MaxRetries     *int     `toml:"max_retries"`
		RetryBackoff   string   `toml:"retry_backoff"`
		LRCLibURL      string   `toml:"lrclib_url"`
		NeteaseURL     string   `toml:"netease_url"`
		UnisonURL      string   `toml:"unison_url"`
	} `toml:"providers"`

	Sniffer struct {
		RetryInterval   string `toml:"retry_interval"`
		LyricsRetries   int    `toml:"lyrics_retries"`
		MatchingRetries int    `toml:"matching_retries"`
		AlbumRetries    int    `toml:"album_retries"`
	} `toml:"sniffer"`

	Fixers struct {
		ShortSpaceMs      int64   `toml:"short_space_ms"`
		SimilarDurationMs int64   `toml:"similar_duration_ms"`
		MinWordMs         int64   `toml:"min_word_ms"`
		ShortWordRatio    float64 `toml:"short_word_ratio"`
	} `toml:"fixers"`

	Translation struct {
		Enabled          bool   `toml:"enabled"`
		Backend          string `toml:"backend"`
		TargetLanguage   string `toml:"target_language"`
		Romanize         *bool  `toml:"romanize"`
		GoogleURL        string `toml:"google_url"`
		TencentSecretID  string `toml:"tencent_secret_id"`
		TencentSecretKey string `toml:"tencent_secret_key"`
		TencentRegion    string `toml:"tencent_region"`
	} `toml:"translation"`

	Store struct {
		DBPath string `toml:"db_path"`
		KVPath string `toml:"kv_path"`
	} `toml:"store"`

	AI struct {
		ModuleName string `toml:"module_name"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		TTL      string `toml:"ttl"`
	} `toml:"redis"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath    string
	CheckInterval time.Duration
	CacheDir      string
	PollPlayer    bool
	StatusFile    string
	LookupTimeout time.Duration
	BarProcess    string // 为空时不通知状态栏
	BarSignal     int
	MPRISService  string // 为空时使用总线上第一个播放器
}

// LogConfig 日志配置
type LogConfig struct {
	Level string
}

// ProvidersConfig 歌词来源配置
type ProvidersConfig struct {
	Enabled        []string
	Priority       []string
	RequestTimeout time.Duration
	RaceTimeout    time.Duration
	MaxRetries     int // 0 表示不重试
	RetryBackoff   time.Duration
	LRCLibURL      string
	NeteaseURL     string
	UnisonURL      string
}

// SnifferConfig 页面事件等待参数
type SnifferConfig struct {
	RetryInterval   time.Duration
	LyricsRetries   int
	MatchingRetries int
	AlbumRetries    int
}

// TranslationConfig 翻译配置
type TranslationConfig struct {
	Enabled          bool
	Backend          string
	TargetLanguage   string
	Romanize         bool
	GoogleURL        string
	TencentSecretID  string
	TencentSecretKey string
	TencentRegion    string
}

// StoreConfig 本地存储路径
type StoreConfig struct {
	DBPath string
	KVPath string
}

// AIConfig AI配置
type AIConfig struct {
	ModuleName string
	APIKey     string
	BaseURL    string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Config 主配置结构
type Config struct {
	App         AppConfig
	Log         LogConfig
	Providers   ProvidersConfig
	Sniffer     SnifferConfig
	Fixers      lrc.FixerConfig
	Translation TranslationConfig
	Store       StoreConfig
	AI          AIConfig
	Redis       RedisConfig
}

// Default 返回全部默认值
func Default() *Config {
	cacheDir := getDefaultCacheDir()
	dataDir := getDefaultDataDir()
	return &Config{
		App: AppConfig{
			SocketPath:    DefaultSocketPath,
			CheckInterval: DefaultCheckInterval,
			CacheDir:      cacheDir,
			PollPlayer:    true,
			LookupTimeout: DefaultLookupTimeout,
			BarSignal:     DefaultBarSignal,
		},
		Log: LogConfig{Level: "info"},
		Providers: ProvidersConfig{
			Enabled:        append([]string(nil), DefaultProviders...),
			Priority:       append([]string(nil), DefaultPriority...),
			RequestTimeout: DefaultRequestTimeout,
			RaceTimeout:    DefaultRaceTimeout,
			MaxRetries:     DefaultMaxRetries,
			RetryBackoff:   DefaultRetryBackoff,
		},
		Sniffer: SnifferConfig{
			RetryInterval:   DefaultRetryInterval,
			LyricsRetries:   DefaultRetries,
			MatchingRetries: DefaultRetries,
			AlbumRetries:    DefaultRetries,
		},
		Fixers: lrc.DefaultFixerConfig(),
		Translation: TranslationConfig{
			Backend:        "google",
			TargetLanguage: "en",
			Romanize:       true,
		},
		Store: StoreConfig{
			DBPath: filepath.Join(dataDir, "clyrics.sqlite3"),
			KVPath: filepath.Join(dataDir, "kv.list"),
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  DefaultRedisTTL,
		},
	}
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml"
	}
	return filepath.Join(homeDir, ".config", appName, "config.toml")
}

// Load 从默认路径加载配置，出错时使用默认值
func Load() *Config {
	path := GetConfigPath()
	cfg, err := LoadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to load config file, using defaults")
		return Default()
	}
	return cfg
}

// LoadFile layers the file at path over the defaults. A missing file is
// not an error.
func LoadFile(path string) (*Config, error) {
	var tc TomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("path", path).Msg("Config file not found, using defaults")
			return Default(), nil
		}
		return nil, err
	}
	log.Info().Str("path", path).Msg("Loaded config")
	return apply(&tc), nil
}

func apply(tc *TomlConfig) *Config {
	config := Default()

	// App
	setString(&config.App.SocketPath, tc.App.SocketPath)
	setDuration(&config.App.CheckInterval, tc.App.CheckInterval, "app.check_interval")
	setString(&config.App.CacheDir, tc.App.CacheDir)
	if tc.App.PollPlayer != nil {
		config.App.PollPlayer = *tc.App.PollPlayer
	}
	setString(&config.App.StatusFile, tc.App.StatusFile)
	setDuration(&config.App.LookupTimeout, tc.App.LookupTimeout, "app.lookup_timeout")
	setString(&config.App.BarProcess, tc.App.BarProcess)
	setInt(&config.App.BarSignal, tc.App.BarSignal)
	setString(&config.App.MPRISService, tc.App.MPRISService)

	setString(&config.Log.Level, tc.Log.Level)

	// Providers
	if len(tc.Providers.Enabled) > 0 {
		config.Providers.Enabled = tc.Providers.Enabled
	}
	if len(tc.Providers.Priority) > 0 {
		config.Providers.Priority = tc.Providers.Priority
	}
	setDuration(&config.Providers.RequestTimeout, tc.Providers.RequestTimeout, "providers.request_timeout")
	setDuration(&config.Providers.RaceTimeout, tc.Providers.RaceTimeout, "providers.race_timeout")
	if tc.Providers.MaxRetries != nil && *tc.Providers.MaxRetries >= 0 {
		config.Providers.MaxRetries = *tc.Providers.MaxRetries
	}
	setDuration(&config.Providers.RetryBackoff, tc.Providers.RetryBackoff, "providers.retry_backoff")
	setString(&config.Providers.LRCLibURL, tc.Providers.LRCLibURL)
	setString(&config.Providers.NeteaseURL, tc.Providers.NeteaseURL)
	setString(&config.Providers.UnisonURL, tc.Providers.UnisonURL)

	// Sniffer
	setDuration(&config.Sniffer.RetryInterval, tc.Sniffer.RetryInterval, "sniffer.retry_interval")
	setInt(&config.Sniffer.LyricsRetries, tc.Sniffer.LyricsRetries)
	setInt(&config.Sniffer.MatchingRetries, tc.Sniffer.MatchingRetries)
	setInt(&config.Sniffer.AlbumRetries, tc.Sniffer.AlbumRetries)

	// Fixers
	if tc.Fixers.ShortSpaceMs > 0 {
		config.Fixers.ShortSpaceMs = tc.Fixers.ShortSpaceMs
	}
	if tc.Fixers.SimilarDurationMs > 0 {
		config.Fixers.SimilarDurationMs = tc.Fixers.SimilarDurationMs
	}
	if tc.Fixers.MinWordMs > 0 {
		config.Fixers.MinWordMs = tc.Fixers.MinWordMs
	}
	if tc.Fixers.ShortWordRatio > 0 {
		config.Fixers.ShortWordRatio = tc.Fixers.ShortWordRatio
	}

	// Translation
	config.Translation.Enabled = tc.Translation.Enabled
	setString(&config.Translation.Backend, tc.Translation.Backend)
	setString(&config.Translation.TargetLanguage, tc.Translation.TargetLanguage)
	if tc.Translation.Romanize != nil {
		config.Translation.Romanize = *tc.Translation.Romanize
	}
	setString(&config.Translation.GoogleURL, tc.Translation.GoogleURL)
	setString(&config.Translation.TencentSecretID, tc.Translation.TencentSecretID)
	setString(&config.Translation.TencentSecretKey, tc.Translation.TencentSecretKey)
	setString(&config.Translation.TencentRegion, tc.Translation.TencentRegion)

	// Store
	setString(&config.Store.DBPath, tc.Store.DBPath)
	setString(&config.Store.KVPath, tc.Store.KVPath)

	// AI
	setString(&config.AI.ModuleName, tc.AI.ModuleName)
	setString(&config.AI.BaseURL, tc.AI.BaseURL)
	setString(&config.AI.APIKey, tc.AI.APIKey)

	// Redis
	setString(&config.Redis.Addr, tc.Redis.Addr)
	setString(&config.Redis.Password, tc.Redis.Password)
	if tc.Redis.DB != 0 {
		config.Redis.DB = tc.Redis.DB
	}
	setDuration(&config.Redis.TTL, tc.Redis.TTL, "redis.ttl")

	if config.AI.APIKey == "" {
		log.Warn().Msg("No AI API key configured, titles without an artist are looked up as-is")
	}
	return config
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, key string) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration, using default")
		return
	}
	*dst = d
}
