// Package config loads shell configuration with koanf. Sources are applied
// in order, later ones winning: built-in defaults, the YAML config file,
// SESSIONGATE_* environment variables, then command line flags.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/jmcleod/sessiongate/internal/logging"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "SESSIONGATE_"

// Config is the full shell configuration. Only BaseURL matters to the
// session core; everything else configures the command line host.
type Config struct {
	BaseURL    string    `koanf:"base_url"`
	ProfileDir string    `koanf:"profile_dir"`
	Log        Log       `koanf:"log"`
	HTTP       HTTP      `koanf:"http"`
	Flow       Flow      `koanf:"flow"`
	DevServer  DevServer `koanf:"devserver"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type HTTP struct {
	// Timeout bounds each backend call. Zero leaves it to the transport.
	Timeout time.Duration `koanf:"timeout"`
}

type Flow struct {
	LoginRedirectDelay time.Duration `koanf:"login_redirect_delay"`
	AutoLoginDelay     time.Duration `koanf:"auto_login_delay"`
}

type DevServer struct {
	Addr     string `koanf:"addr"`
	DataDir  string `koanf:"data_dir"`
	NoTokens bool   `koanf:"no_tokens"`
}

// sections lists the nested keys, so SESSIONGATE_FLOW_AUTO_LOGIN_DELAY maps
// to flow.auto_login_delay rather than flow.auto.login.delay.
var sections = []string{"log", "http", "flow", "devserver"}

// flagKeys maps command line flag names to config keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"base-url":    "base_url",
	"profile-dir": "profile_dir",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"timeout":     "http.timeout",
	"addr":        "devserver.addr",
	"data-dir":    "devserver.data_dir",
	"no-tokens":   "devserver.no_tokens",
}

func defaults() map[string]any {
	return map[string]any{
		"base_url":    "http://localhost:8000",
		"profile_dir": "",
		"log": map[string]any{
			"level":  "info",
			"format": logging.FormatText,
		},
		"http": map[string]any{
			"timeout": time.Duration(0),
		},
		"flow": map[string]any{
			"login_redirect_delay": time.Second,
			"auto_login_delay":     2 * time.Second,
		},
		"devserver": map[string]any{
			"addr":      "127.0.0.1:8000",
			"data_dir":  "",
			"no_tokens": false,
		},
	}
}

// Loader loads configuration from multiple sources.
type Loader struct {
	k            *koanf.Koanf
	envPrefix    string
	filePath     string
	fileOptional bool
	flags        *pflag.FlagSet
}

// Option configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML file to read. A missing file is an error.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
		l.fileOptional = false
	}
}

// WithOptionalConfigFile reads path only if it exists.
func WithOptionalConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
		l.fileOptional = true
	}
}

// WithFlags applies flags that were set explicitly on the command line.
func WithFlags(fs *pflag.FlagSet) Option {
	return func(l *Loader) {
		l.flags = fs
	}
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load is shorthand for NewLoader(opts...).Load().
func Load(opts ...Option) (*Config, error) {
	return NewLoader(opts...).Load()
}

// Load reads every source, then validates the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}
	if err := l.loadFile(); err != nil {
		return nil, err
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}
	if l.flags != nil {
		if err := l.k.Load(posflag.ProviderWithFlag(l.flags, ".", l.k, l.flagKey), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) loadFile() error {
	if l.filePath == "" {
		return nil
	}
	if _, err := os.Stat(l.filePath); err != nil {
		if l.fileOptional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("path", l.filePath).Wrap(err)
	}
	if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", l.filePath).Wrap(err)
	}
	return nil
}

// envKey maps SESSIONGATE_LOG_LEVEL to log.level.
func (l *Loader) envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	for _, sec := range sections {
		if rest, ok := strings.CutPrefix(key, sec+"_"); ok {
			return sec + "." + rest
		}
	}
	return key
}

func (l *Loader) flagKey(f *pflag.Flag) (string, any) {
	key, ok := flagKeys[f.Name]
	if !ok {
		return "", nil
	}
	return key, posflag.FlagVal(l.flags, f)
}

// Validate checks values that koanf cannot type-check.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if c.BaseURL == "" || err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "base_url").Errorf("invalid base_url %q", c.BaseURL)
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" && u.Host != "" {
		return oops.Code("CONFIG_INVALID").With("key", "base_url").Errorf("unsupported scheme %q", u.Scheme)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatJSON, logging.FormatText:
	default:
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Errorf("unknown log format %q", c.Log.Format)
	}
	for key, d := range map[string]time.Duration{
		"http.timeout":              c.HTTP.Timeout,
		"flow.login_redirect_delay": c.Flow.LoginRedirectDelay,
		"flow.auto_login_delay":     c.Flow.AutoLoginDelay,
	} {
		if d < 0 {
			return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s must not be negative", key)
		}
	}
	return nil
}

// mapProvider is a koanf provider over a nested map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
