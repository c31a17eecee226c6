package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	apperrors "sjsage522/listingwatcher/pkg/errors"
)

// Store backends
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StoreMemcache = "memcache"
)

var topicPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Config represents the application configuration
type Config struct {
	// Topic file
	ConfigPath string
	Topics     []TopicConfig

	// Telegram configuration
	APIToken string
	ChatID   string

	// Seen store configuration
	StoreBackend  string
	DataDir       string
	DirtyFlagPath string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisKeyPrefix       string
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Fetch configuration
	FetchTimeout   time.Duration
	RateLimitBlock time.Duration

	// Scheduling, empty means a single run
	ScanSchedule string

	// Environment
	Environment string

	// Plain-text log of failed scans, empty disables it
	ErrorLogFile string
}

// TopicConfig is one monitored listing page
type TopicConfig struct {
	Topic     string     `yaml:"topic"`
	URL       string     `yaml:"url"`
	Disabled  bool       `yaml:"disabled"`
	Selectors *Selectors `yaml:"selectors,omitempty"`
}

// Enabled reports whether the topic should be scanned
func (t TopicConfig) Enabled() bool {
	return !t.Disabled
}

// Selectors overrides the default listing selectors for a topic
type Selectors struct {
	Title         string `yaml:"title"`
	ChallengeText string `yaml:"challengeText"`
	Item          string `yaml:"item"`
	Image         string `yaml:"image"`
	Attribute     string `yaml:"attribute"`
}

// fileConfig mirrors the JSON/YAML topic file
type fileConfig struct {
	TelegramAPIToken string        `yaml:"telegramApiToken"`
	ChatID           string        `yaml:"chatId"`
	Projects         []TopicConfig `yaml:"projects"`
}

// LoadConfig loads the configuration from environment variables with defaults
// and reads the topic file named by CONFIG_PATH.
func LoadConfig() (*Config, error) {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "30"))
	rateLimitBlock, _ := strconv.Atoi(getEnv("RATE_LIMIT_BLOCK_SECONDS", "600"))

	cfg := &Config{
		ConfigPath:           getEnv("CONFIG_PATH", "config.json"),
		StoreBackend:         getEnv("STORE_BACKEND", StoreFile),
		DataDir:              getEnv("DATA_DIR", "data"),
		DirtyFlagPath:        getEnv("DIRTY_FLAG_PATH", "push_me"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisKeyPrefix:       getEnv("REDIS_KEY_PREFIX", "seen"),
		RedisStream:          getEnv("REDIS_STREAM", ""),
		RedisStreamMaxLength: streamMaxLength,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		FetchTimeout:         time.Duration(fetchTimeout) * time.Second,
		RateLimitBlock:       time.Duration(rateLimitBlock) * time.Second,
		ScanSchedule:         getEnv("SCAN_SCHEDULE", ""),
		Environment:          getEnv("WATCHER_ENVIRONMENT", "development"),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", ""),
	}

	fc, err := readFile(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Topics = fc.Projects
	cfg.APIToken = getEnv("API_TOKEN", fc.TelegramAPIToken)
	cfg.ChatID = getEnv("CHAT_ID", fc.ChatID)

	return cfg, nil
}

func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfiguration("read topic file "+path, err)
	}

	// JSON documents are valid YAML, so config.json and config.yaml both work.
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, apperrors.NewConfiguration("parse topic file "+path, err)
	}
	return &fc, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.APIToken == "" {
		return apperrors.NewConfiguration("telegram api token is required (API_TOKEN)", nil)
	}
	if c.ChatID == "" {
		return apperrors.NewConfiguration("chat id is required (CHAT_ID)", nil)
	}
	if len(c.Topics) == 0 {
		return apperrors.NewConfiguration("no topics configured in "+c.ConfigPath, nil)
	}

	seen := make(map[string]bool, len(c.Topics))
	for i, t := range c.Topics {
		if !topicPattern.MatchString(t.Topic) {
			return apperrors.NewConfiguration(fmt.Sprintf("topic #%d: invalid name %q", i, t.Topic), nil)
		}
		if seen[t.Topic] {
			return apperrors.NewConfiguration(fmt.Sprintf("topic %q is defined more than once", t.Topic), nil)
		}
		seen[t.Topic] = true

		u, err := url.Parse(t.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperrors.NewConfiguration(fmt.Sprintf("topic %q: invalid url %q", t.Topic, t.URL), err)
		}
	}

	switch c.StoreBackend {
	case StoreFile, StoreRedis, StoreMemcache:
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unknown store backend %q", c.StoreBackend), nil)
	}
	if c.StoreBackend == StoreMemcache && c.MemcacheAddr == "" {
		return apperrors.NewConfiguration("memcache store requires MEMCACHE_ADDR", nil)
	}

	if c.FetchTimeout <= 0 {
		return apperrors.NewConfiguration("fetch timeout must be positive", nil)
	}

	if c.ScanSchedule != "" {
		if _, err := cron.ParseStandard(c.ScanSchedule); err != nil {
			return apperrors.NewConfiguration("invalid SCAN_SCHEDULE", err)
		}
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
