package config

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL       = "http://127.0.0.1:7444"
	DefaultDBFileName   = ".funcreg.db"
	DefaultBlobDirName  = ".funcreg-blobs"
	DefaultLogLevel     = "debug"
	DefaultOwner        = "admin"
	configFileName      = ".funcreg.toml"
	DefaultCacheTTL     = 30 * time.Second
	DefaultTraceExport  = "stdout"
	DefaultTraceSamples = 1.0

	DefaultCodeMaxUploadBytes     int64 = 100 * 1024 * 1024
	DefaultCodeMultipartMaxMemory int64 = 8 * 1024 * 1024
	DefaultStagingTTL                   = 24 * time.Hour
	DefaultGCInterval                   = 2 * time.Hour
	DefaultGCBatchSize                  = 500

	configDirEnvKey          = "FUNCREG_CONFIG_DIR"
	trustProjectConfigEnvKey = "FUNCREG_TRUST_PROJECT_CONFIG"

	apiURLEnvKey            = "FUNCREG_API_URL"
	dbPathEnvKey            = "FUNCREG_DB"
	blobRootEnvKey          = "FUNCREG_BLOB_ROOT"
	logLevelEnvKey          = "FUNCREG_LOG_LEVEL"
	ownerEnvKey             = "FUNCREG_OWNER"
	stagingTTLEnvKey        = "FUNCREG_STAGING_TTL"
	gcIntervalEnvKey        = "FUNCREG_GC_INTERVAL"
	allowedMediaTypesEnvKey = "FUNCREG_CODE_ALLOWED_MEDIA_TYPES"
)

// CodeConfig controls uploads and staged code collection.
type CodeConfig struct {
	MaxUploadBytes     int64         `toml:"max_upload_bytes"`
	MultipartMaxMemory int64         `toml:"multipart_max_memory"`
	AllowedMediaTypes  []string      `toml:"allowed_media_types"`
	StagingTTL         time.Duration `toml:"staging_ttl"`
	GCInterval         time.Duration `toml:"gc_interval"`
	GCBatchSize        int           `toml:"gc_batch_size"`
}

// CacheConfig controls the function read cache. A zero TTL disables it.
type CacheConfig struct {
	TTL time.Duration `toml:"ttl"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled      bool    `toml:"enabled"`
	Exporter     string  `toml:"exporter"`
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	SampleRate   float64 `toml:"sample_rate"`
}

// Config defines runtime configuration for funcreg.
type Config struct {
	APIURL                   string        `toml:"api_url"`
	DBPath                   string        `toml:"db_path"`
	BlobRoot                 string        `toml:"blob_root"`
	LogLevel                 string        `toml:"log_level"`
	DefaultOwner             string        `toml:"default_owner"`
	Code                     CodeConfig    `toml:"code"`
	Cache                    CacheConfig   `toml:"cache"`
	Tracing                  TracingConfig `toml:"tracing"`
	TrustedProjectConfigPath string        `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:       DefaultAPIURL,
		LogLevel:     DefaultLogLevel,
		DefaultOwner: DefaultOwner,
		Code: CodeConfig{
			MaxUploadBytes:     DefaultCodeMaxUploadBytes,
			MultipartMaxMemory: DefaultCodeMultipartMaxMemory,
			StagingTTL:         DefaultStagingTTL,
			GCInterval:         DefaultGCInterval,
			GCBatchSize:        DefaultGCBatchSize,
		},
		Cache: CacheConfig{TTL: DefaultCacheTTL},
		Tracing: TracingConfig{
			Exporter:   DefaultTraceExport,
			SampleRate: DefaultTraceSamples,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"blob_root",
	"log_level",
	"default_owner",
	"code.max_upload_bytes",
	"code.multipart_max_memory",
	"code.allowed_media_types",
	"code.staging_ttl",
	"code.gc_interval",
	"code.gc_batch_size",
	"cache.ttl",
	"tracing.enabled",
	"tracing.exporter",
	"tracing.otlp_endpoint",
	"tracing.sample_rate",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "blob_root":
		return c.BlobRoot, nil
	case "log_level":
		return c.LogLevel, nil
	case "default_owner":
		return c.DefaultOwner, nil
	case "code.max_upload_bytes":
		return strconv.FormatInt(c.Code.MaxUploadBytes, 10), nil
	case "code.multipart_max_memory":
		return strconv.FormatInt(c.Code.MultipartMaxMemory, 10), nil
	case "code.allowed_media_types":
		return strings.Join(c.Code.AllowedMediaTypes, ","), nil
	case "code.staging_ttl":
		return c.Code.StagingTTL.String(), nil
	case "code.gc_interval":
		return c.Code.GCInterval.String(), nil
	case "code.gc_batch_size":
		return strconv.Itoa(c.Code.GCBatchSize), nil
	case "cache.ttl":
		return c.Cache.TTL.String(), nil
	case "tracing.enabled":
		return strconv.FormatBool(c.Tracing.Enabled), nil
	case "tracing.exporter":
		return c.Tracing.Exporter, nil
	case "tracing.otlp_endpoint":
		return c.Tracing.OTLPEndpoint, nil
	case "tracing.sample_rate":
		return strconv.FormatFloat(c.Tracing.SampleRate, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if cfg.BlobRoot == "" && cfg.DBPath != "" {
		cfg.BlobRoot = filepath.Join(filepath.Dir(cfg.DBPath), DefaultBlobDirName)
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		c.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		c.DBPath = dbPath
	}
	if blobRoot := os.Getenv(blobRootEnvKey); blobRoot != "" {
		c.BlobRoot = blobRoot
	}
	if level := os.Getenv(logLevelEnvKey); level != "" {
		c.LogLevel = level
	}
	if owner := strings.TrimSpace(os.Getenv(ownerEnvKey)); owner != "" {
		c.DefaultOwner = owner
	}
	if raw := strings.TrimSpace(os.Getenv(stagingTTLEnvKey)); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", stagingTTLEnvKey, raw, err)
		}
		c.Code.StagingTTL = ttl
	}
	if raw := strings.TrimSpace(os.Getenv(gcIntervalEnvKey)); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", gcIntervalEnvKey, raw, err)
		}
		c.Code.GCInterval = interval
	}
	if raw := strings.TrimSpace(os.Getenv(allowedMediaTypesEnvKey)); raw != "" {
		c.Code.AllowedMediaTypes = splitCSV(raw)
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "code.max_upload_bytes", "code.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "code.gc_batch_size":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "code.staging_ttl", "code.gc_interval":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration", key)
		}
		return parsed.String(), nil
	case "cache.ttl":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative duration", key)
		}
		return parsed.String(), nil
	case "tracing.enabled":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "tracing.exporter":
		switch value {
		case "none", "stdout", "otlp":
			return value, nil
		}
		return nil, fmt.Errorf("%s must be one of none, stdout, otlp", key)
	case "tracing.sample_rate":
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return nil, fmt.Errorf("%s must be between 0 and 1", key)
		}
		return parsed, nil
	case "code.allowed_media_types":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.DefaultOwner) == "" {
		c.DefaultOwner = DefaultOwner
	}
	if c.Code.MaxUploadBytes <= 0 {
		c.Code.MaxUploadBytes = DefaultCodeMaxUploadBytes
	}
	if c.Code.MultipartMaxMemory <= 0 {
		c.Code.MultipartMaxMemory = DefaultCodeMultipartMaxMemory
	}
	if c.Code.StagingTTL <= 0 {
		c.Code.StagingTTL = DefaultStagingTTL
	}
	if c.Code.GCInterval <= 0 {
		c.Code.GCInterval = DefaultGCInterval
	}
	if c.Code.GCBatchSize <= 0 {
		c.Code.GCBatchSize = DefaultGCBatchSize
	}
	if c.Cache.TTL < 0 {
		c.Cache.TTL = 0
	}
	if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
		c.Tracing.SampleRate = DefaultTraceSamples
	}
	c.Code.AllowedMediaTypes = normalizeConfiguredMediaTypes(c.Code.AllowedMediaTypes)
}

func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
