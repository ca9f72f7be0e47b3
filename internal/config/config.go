package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jgivc/fetchguard/internal/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	MatchPolicyExact       = "exact"
	MatchPolicyFoldCase    = "fold_case"
	MatchPolicyFoldAccents = "fold_accents"

	EnvFileName = ".env"
	envPrefix   = "FETCHGUARD_"

	defaultListen          = ":8080"
	defaultRedisURL        = "redis://localhost:6379/0"
	defaultDownloadDir     = "downloads"
	defaultTimeout         = 60 * time.Second
	defaultPollInterval    = time.Second
	defaultNavTimeout      = 30 * time.Second
	defaultReferenceDB     = "reference.db"
	defaultPrimaryQuery    = "SELECT DISTINCT name FROM locations ORDER BY name"
	defaultFiguresQuery    = "SELECT label, value FROM figures WHERE name = ? ORDER BY label"
	defaultClassifyTimeout = 10 * time.Second
)

var (
	defaultPartialSuffixes = []string{".crdownload", ".part", ".tmp", ".download"}
)

type DownloadConfig struct {
	Dir             string        `yaml:"dir"`
	Timeout         time.Duration `yaml:"timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PartialSuffixes []string      `yaml:"partial_suffixes"`
	LockDir         string        `yaml:"lock_dir"`
	Retries         int           `yaml:"retries"`
}

type BrowserConfig struct {
	Bin               string        `yaml:"bin"`
	ControlURL        string        `yaml:"control_url"`
	Headless          bool          `yaml:"headless"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

type ReferenceConfig struct {
	DBPath       string        `yaml:"db_path"`
	PrimaryQuery string        `yaml:"primary_query"`
	FiguresQuery string        `yaml:"figures_query"`
	Auxiliary    []string      `yaml:"auxiliary"`
	MatchPolicy  string        `yaml:"match_policy"`
	Timeout      time.Duration `yaml:"timeout"`
}

type ReportConfig struct {
	HeaderFileName string `yaml:"header_filename"`
}

type Config struct {
	Listen          string          `yaml:"listen"`
	RedisURL        string          `yaml:"redis_url"`
	LogLevel        string          `yaml:"log_level"`
	DownloadConfig  DownloadConfig  `yaml:"download"`
	BrowserConfig   BrowserConfig   `yaml:"browser"`
	ReferenceConfig ReferenceConfig `yaml:"reference"`
	ReportConfig    ReportConfig    `yaml:"report"`
}

func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}

	if c.RedisURL == "" {
		c.RedisURL = defaultRedisURL
	}

	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}

	d := &c.DownloadConfig
	if d.Dir == "" {
		d.Dir = defaultDownloadDir
	}

	if d.Timeout == 0 {
		d.Timeout = defaultTimeout
	}

	if d.PollInterval == 0 {
		d.PollInterval = defaultPollInterval
	}

	if len(d.PartialSuffixes) == 0 {
		d.PartialSuffixes = append([]string(nil), defaultPartialSuffixes...)
	}

	if d.LockDir == "" {
		d.LockDir = os.TempDir()
	}

	if c.BrowserConfig.NavigationTimeout == 0 {
		c.BrowserConfig.NavigationTimeout = defaultNavTimeout
	}

	r := &c.ReferenceConfig
	if r.DBPath == "" {
		r.DBPath = defaultReferenceDB
	}

	if r.PrimaryQuery == "" {
		r.PrimaryQuery = defaultPrimaryQuery
	}

	if r.FiguresQuery == "" {
		r.FiguresQuery = defaultFiguresQuery
	}

	if r.MatchPolicy == "" {
		r.MatchPolicy = MatchPolicyExact
	}

	if r.Timeout == 0 {
		r.Timeout = defaultClassifyTimeout
	}
}

// Validate reports values that cannot work. Errors wrap common.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	switch c.ReferenceConfig.MatchPolicy {
	case MatchPolicyExact, MatchPolicyFoldCase, MatchPolicyFoldAccents:
	default:
		errs = append(errs, fmt.Errorf("unknown match policy %q", c.ReferenceConfig.MatchPolicy))
	}

	if c.DownloadConfig.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("download timeout must be positive"))
	}

	if c.DownloadConfig.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("download poll interval must be positive"))
	}

	if c.DownloadConfig.Retries < 0 {
		errs = append(errs, fmt.Errorf("download retries must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrConfiguration, errors.Join(errs...))
	}

	return nil
}

// Load reads the yaml file at path, the optional .env file and FETCHGUARD_* variables,
// in that order of precedence from lowest to highest. A missing config file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: cannot read config file %s: %w", common.ErrConfiguration, path, err)
	}

	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: cannot parse config file %s: %w", common.ErrConfiguration, path, err)
		}
	}

	if err := godotenv.Load(EnvFileName); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: cannot load %s: %w", common.ErrConfiguration, EnvFileName, err)
	}

	cfg.applyEnv()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	envString(&c.RedisURL, "REDIS_URL")
	envString(&c.LogLevel, "LOG_LEVEL")
	envString(&c.Listen, "LISTEN")
	envString(&c.DownloadConfig.Dir, "DOWNLOAD_DIR")
	envString(&c.ReferenceConfig.DBPath, "REFERENCE_DB")
	envString(&c.ReferenceConfig.MatchPolicy, "MATCH_POLICY")
	envString(&c.BrowserConfig.ControlURL, "BROWSER_URL")
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
		*dst = v
	}
}
