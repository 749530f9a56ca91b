package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SWAPS_"

type GlobalFlags struct {
	ConfigPath      string
	EnvFile         string
	JSON            bool
	Plain           bool
	Select          string
	ResultsOnly     bool
	EnableCommands  string
	EnableProviders string
	Strict          bool
	Timeout         string
	Retries         int
	MaxStale        string
	NoStale         bool
	NoCache         bool
	LogLevel        string
	MetricsFile     string
}

type Settings struct {
	OutputMode      string
	SelectFields    []string
	ResultsOnly     bool
	EnableCommands  []string
	EnableProviders []string
	Strict          bool
	Timeout         time.Duration
	Retries         int
	MaxStale        time.Duration
	NoStale         bool
	CacheEnabled    bool
	CachePath       string
	CacheLockPath   string
	TokenMemoryTTL  time.Duration
	TokenCacheTTL   time.Duration
	DefaultSlippage string
	QuoteDeadline   time.Duration
	LogLevel        string
	MetricsFile     string

	NearIntentsBaseURL  string
	NearIntentsJWT      string
	NearIntentsReferral string
	JupiterBaseURL      string
	JupiterAPIKey       string
	SquidBaseURL        string
	SquidIntegratorID   string

	// RPCURLs overrides EVM endpoints by chain slug.
	RPCURLs map[string]string
	// AlchemyAPIKey switches chains without an override to Alchemy endpoints.
	AlchemyAPIKey string
}

type secret struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
}

func (s secret) resolve(lookup func(string) string) string {
	if s.APIKeyEnv != "" {
		return lookup(s.APIKeyEnv)
	}
	return s.APIKey
}

type fileConfig struct {
	Output   string `yaml:"output"`
	Strict   *bool  `yaml:"strict"`
	Timeout  string `yaml:"timeout"`
	Retries  *int   `yaml:"retries"`
	LogLevel string `yaml:"log_level"`
	Metrics  struct {
		File string `yaml:"file"`
	} `yaml:"metrics"`
	Cache struct {
		Enabled        *bool  `yaml:"enabled"`
		MaxStale       string `yaml:"max_stale"`
		Path           string `yaml:"path"`
		LockPath       string `yaml:"lock_path"`
		TokenMemoryTTL string `yaml:"token_memory_ttl"`
		TokenTTL       string `yaml:"token_ttl"`
	} `yaml:"cache"`
	Swap struct {
		DefaultSlippage string `yaml:"default_slippage"`
		QuoteDeadline   string `yaml:"quote_deadline"`
	} `yaml:"swap"`
	Providers struct {
		NearIntents struct {
			BaseURL  string `yaml:"base_url"`
			Referral string `yaml:"referral"`
			JWT      secret `yaml:"jwt"`
		} `yaml:"near_intents"`
		Jupiter struct {
			BaseURL   string `yaml:"base_url"`
			APIKey    string `yaml:"api_key"`
			APIKeyEnv string `yaml:"api_key_env"`
		} `yaml:"jupiter"`
		Squid struct {
			BaseURL      string `yaml:"base_url"`
			IntegratorID secret `yaml:"integrator_id"`
		} `yaml:"squid"`
	} `yaml:"providers"`
	RPC     map[string]string `yaml:"rpc"`
	Alchemy secret            `yaml:"alchemy"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	env, err := newEnv(flags.EnvFile)
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, env.get, &settings); err != nil {
		return Settings{}, err
	}

	if err := applyEnv(env, &settings); err != nil {
		return Settings{}, err
	}

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.MaxStale < 0 {
		settings.MaxStale = 5 * time.Minute
	}
	if settings.TokenMemoryTTL <= 0 {
		settings.TokenMemoryTTL = 5 * time.Minute
	}
	if settings.TokenCacheTTL <= 0 {
		settings.TokenCacheTTL = 24 * time.Hour
	}
	if settings.TokenMemoryTTL >= settings.TokenCacheTTL {
		return Settings{}, fmt.Errorf("token memory ttl must be shorter than the persistent token ttl")
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	cachePath, lockPath, err := defaultCachePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:      "json",
		Timeout:         10 * time.Second,
		Retries:         2,
		MaxStale:        5 * time.Minute,
		CacheEnabled:    true,
		CachePath:       cachePath,
		CacheLockPath:   lockPath,
		TokenMemoryTTL:  5 * time.Minute,
		TokenCacheTTL:   24 * time.Hour,
		DefaultSlippage: "0.5",
		QuoteDeadline:   time.Hour,
		LogLevel:        "warn",
		RPCURLs:         map[string]string{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "swaps", "config.yaml"), nil
}

func defaultCachePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "swaps")
	return filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"), nil
}

// env layers the process environment over an optional dotenv file. The
// process always wins.
type env struct {
	dotenv map[string]string
}

func newEnv(path string) (env, error) {
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(envPrefix + "ENV_FILE")
	}
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return env{dotenv: map[string]string{}}, nil
		}
		return env{}, fmt.Errorf("read env file: %w", err)
	}
	return env{dotenv: values}, nil
}

func (e env) get(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return e.dotenv[key]
}

// withPrefix returns every variable starting with prefix, keyed by the rest
// of the name.
func (e env) withPrefix(prefix string) map[string]string {
	out := map[string]string{}
	for k, v := range e.dotenv {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

func applyFileConfig(path string, lookup func(string) string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Strict != nil {
		settings.Strict = *cfg.Strict
	}
	if err := setDuration(&settings.Timeout, cfg.Timeout, "config timeout"); err != nil {
		return err
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = cfg.LogLevel
	}
	if cfg.Metrics.File != "" {
		settings.MetricsFile = cfg.Metrics.File
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if err := setDuration(&settings.MaxStale, cfg.Cache.MaxStale, "config cache.max_stale"); err != nil {
		return err
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}
	if err := setDuration(&settings.TokenMemoryTTL, cfg.Cache.TokenMemoryTTL, "config cache.token_memory_ttl"); err != nil {
		return err
	}
	if err := setDuration(&settings.TokenCacheTTL, cfg.Cache.TokenTTL, "config cache.token_ttl"); err != nil {
		return err
	}
	if cfg.Swap.DefaultSlippage != "" {
		settings.DefaultSlippage = cfg.Swap.DefaultSlippage
	}
	if err := setDuration(&settings.QuoteDeadline, cfg.Swap.QuoteDeadline, "config swap.quote_deadline"); err != nil {
		return err
	}

	near := cfg.Providers.NearIntents
	if near.BaseURL != "" {
		settings.NearIntentsBaseURL = near.BaseURL
	}
	if near.Referral != "" {
		settings.NearIntentsReferral = near.Referral
	}
	if v := near.JWT.resolve(lookup); v != "" {
		settings.NearIntentsJWT = v
	}
	if cfg.Providers.Jupiter.BaseURL != "" {
		settings.JupiterBaseURL = cfg.Providers.Jupiter.BaseURL
	}
	jupiterKey := secret{APIKey: cfg.Providers.Jupiter.APIKey, APIKeyEnv: cfg.Providers.Jupiter.APIKeyEnv}
	if v := jupiterKey.resolve(lookup); v != "" {
		settings.JupiterAPIKey = v
	}
	if cfg.Providers.Squid.BaseURL != "" {
		settings.SquidBaseURL = cfg.Providers.Squid.BaseURL
	}
	if v := cfg.Providers.Squid.IntegratorID.resolve(lookup); v != "" {
		settings.SquidIntegratorID = v
	}
	for slug, url := range cfg.RPC {
		settings.RPCURLs[strings.ToLower(strings.TrimSpace(slug))] = url
	}
	if v := cfg.Alchemy.resolve(lookup); v != "" {
		settings.AlchemyAPIKey = v
	}

	return nil
}

func applyEnv(e env, settings *Settings) error {
	if v := e.get(envPrefix + "OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := e.get(envPrefix + "STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Strict = b
		}
	}
	if v := e.get(envPrefix + "TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := e.get(envPrefix + "RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := e.get(envPrefix + "MAX_STALE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.MaxStale = d
		}
	}
	if v := e.get(envPrefix + "NO_STALE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.NoStale = b
		}
	}
	if v := e.get(envPrefix + "NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := e.get(envPrefix + "CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := e.get(envPrefix + "CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := e.get(envPrefix + "TOKEN_MEMORY_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.TokenMemoryTTL = d
		}
	}
	if v := e.get(envPrefix + "TOKEN_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.TokenCacheTTL = d
		}
	}
	if v := e.get(envPrefix + "DEFAULT_SLIPPAGE"); v != "" {
		settings.DefaultSlippage = v
	}
	if v := e.get(envPrefix + "QUOTE_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.QuoteDeadline = d
		}
	}
	if v := e.get(envPrefix + "LOG_LEVEL"); v != "" {
		settings.LogLevel = v
	}
	if v := e.get(envPrefix + "METRICS_FILE"); v != "" {
		settings.MetricsFile = v
	}
	if v := e.get(envPrefix + "NEAR_INTENTS_BASE_URL"); v != "" {
		settings.NearIntentsBaseURL = v
	}
	if v := e.get(envPrefix + "NEAR_INTENTS_JWT"); v != "" {
		settings.NearIntentsJWT = v
	}
	if v := e.get(envPrefix + "NEAR_INTENTS_REFERRAL"); v != "" {
		settings.NearIntentsReferral = v
	}
	if v := e.get(envPrefix + "JUPITER_BASE_URL"); v != "" {
		settings.JupiterBaseURL = v
	}
	if v := e.get(envPrefix + "JUPITER_API_KEY"); v != "" {
		settings.JupiterAPIKey = v
	}
	if v := e.get(envPrefix + "SQUID_BASE_URL"); v != "" {
		settings.SquidBaseURL = v
	}
	if v := e.get(envPrefix + "SQUID_INTEGRATOR_ID"); v != "" {
		settings.SquidIntegratorID = v
	}
	if v := e.get(envPrefix + "ALCHEMY_API_KEY"); v != "" {
		settings.AlchemyAPIKey = v
	}
	for slug, url := range e.withPrefix(envPrefix + "RPC_") {
		if strings.TrimSpace(url) != "" {
			settings.RPCURLs[strings.ToLower(slug)] = url
		}
	}
	return validateSlippage(settings.DefaultSlippage)
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitList(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if allowed := splitList(flags.EnableCommands); len(allowed) > 0 {
		settings.EnableCommands = allowed
	}
	if allowed := splitList(flags.EnableProviders); len(allowed) > 0 {
		settings.EnableProviders = allowed
	}

	if flags.Strict {
		settings.Strict = true
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.MaxStale != "" {
		d, err := time.ParseDuration(flags.MaxStale)
		if err != nil {
			return fmt.Errorf("parse --max-stale: %w", err)
		}
		settings.MaxStale = d
	}
	if flags.NoStale {
		settings.NoStale = true
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.LogLevel != "" {
		settings.LogLevel = flags.LogLevel
	}
	if flags.MetricsFile != "" {
		settings.MetricsFile = flags.MetricsFile
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	switch strings.ToLower(settings.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}

	return nil
}

func setDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

func validateSlippage(v string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 || f > 100 {
		return fmt.Errorf("default slippage must be a percentage between 0 and 100, got %q", v)
	}
	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
