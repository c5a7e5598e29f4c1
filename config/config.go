// Package config loads fsql settings from defaults, a YAML file, FSQL_
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-mizu/fsql"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is read when Load gets no explicit path and it exists.
const DefaultFile = "fsql.yaml"

// EnvPrefix prefixes environment overrides. A double underscore descends
// into a section: FSQL_QUERY__TIMEOUT=5s sets query.timeout.
const EnvPrefix = "FSQL_"

// Config is the resolved configuration.
type Config struct {
	Driver         string      `koanf:"driver"`
	DSN            string      `koanf:"dsn"`
	Placeholder    string      `koanf:"placeholder"` // empty: the driver's own style
	StatementCache int         `koanf:"statement_cache"`
	Parallelism    int         `koanf:"parallelism"`
	LogLevel       string      `koanf:"log_level"`
	Query          QueryConfig `koanf:"query"`
}

// QueryConfig holds the defaults every query object starts from.
type QueryConfig struct {
	Timeout          time.Duration `koanf:"timeout"`
	Poolable         bool          `koanf:"poolable"`
	Escaped          bool          `koanf:"escaped"`
	Batch            bool          `koanf:"batch"`
	Large            bool          `koanf:"large"`
	SuppressWarnings bool          `koanf:"suppress_warnings"`
}

func defaults() map[string]any {
	return map[string]any{
		"driver":                  "sqlite",
		"statement_cache":         0,
		"parallelism":             4,
		"log_level":               "warn",
		"query.timeout":           "0s",
		"query.poolable":          false,
		"query.escaped":           true,
		"query.batch":             false,
		"query.large":             false,
		"query.suppress_warnings": false,
	}
}

// RegisterFlags defines the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("driver", "", "registered driver name (sqlite, postgres, mysql, duckdb)")
	fs.String("dsn", "", "data source name")
	fs.String("placeholder", "", "placeholder style: question, dollar, atp, colon")
	fs.Int("statement-cache", 0, "cache up to N poolable statements (0 disables)")
	fs.Int("parallelism", 0, "maximum concurrent units for parallel execution")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.Duration("query-timeout", 0, "statement timeout")
	fs.Bool("query-poolable", false, "cache prepared statements")
	fs.Bool("query-escaped", true, "expand {d ..}, {fn ..} style escapes")
	fs.Bool("query-batch", false, "send batch parameter sets in one round trip")
	fs.Bool("query-large", false, "allow affected row totals beyond 32 bits")
	fs.Bool("query-suppress-warnings", false, "do not log warnings")
}

// Load resolves the configuration. path may be empty, in which case
// DefaultFile is used when present. flags may be nil; only flags the user
// changed take part.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			ErrorUnused:      true, // typos in fsql.yaml must not pass silently
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKey maps kebab-case flag names to config keys:
// query-suppress-warnings -> query.suppress_warnings.
func flagKey(name string) string {
	if rest, ok := strings.CutPrefix(name, "query-"); ok {
		return "query." + strings.ReplaceAll(rest, "-", "_")
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Driver == "" {
		errs = append(errs, errors.New("driver is required"))
	}
	if c.Placeholder != "" {
		if _, err := fsql.ParsePlaceholder(c.Placeholder); err != nil {
			errs = append(errs, err)
		}
	}
	if c.StatementCache < 0 {
		errs = append(errs, fmt.Errorf("statement_cache must be >= 0, got %d", c.StatementCache))
	}
	if c.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("parallelism must be >= 0, got %d", c.Parallelism))
	}
	if c.Query.Timeout < 0 {
		errs = append(errs, fmt.Errorf("query.timeout must be >= 0, got %s", c.Query.Timeout))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Settings converts the query section into fsql query defaults.
func (c *Config) Settings() fsql.Settings {
	return fsql.Settings{
		Large:            c.Query.Large,
		Batch:            c.Query.Batch,
		Poolable:         c.Query.Poolable,
		Escaped:          c.Query.Escaped,
		Timeout:          c.Query.Timeout,
		SuppressWarnings: c.Query.SuppressWarnings,
	}
}

// Options turns the configuration into options for fsql.Open. They apply
// after the driver defaults, so an explicit placeholder wins.
func (c *Config) Options(logger *slog.Logger) []fsql.Option {
	opts := []fsql.Option{
		fsql.WithLogger(logger),
		fsql.WithDefaults(c.Settings()),
		fsql.WithParallelism(c.Parallelism),
	}
	if c.StatementCache > 0 {
		opts = append(opts, fsql.WithStatementCache(c.StatementCache))
	}
	if c.Placeholder != "" {
		if ph, err := fsql.ParsePlaceholder(c.Placeholder); err == nil {
			opts = append(opts, fsql.WithPlaceholder(ph))
		}
	}
	return opts
}
