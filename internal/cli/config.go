package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const maxWalkDepth = 25

// Config represents the strata configuration from strata.yaml.
type Config struct {
	// Dialect names the SQL dialect statements are compiled for.
	Dialect string `mapstructure:"dialect"`
	// Models is the YAML model definition file.
	Models string `mapstructure:"models"`

	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Compile  CompileConfig  `mapstructure:"compile"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	DSN           string        `mapstructure:"dsn"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// LogConfig selects the slog handler of the CLI.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CompileConfig holds statement compilation settings.
type CompileConfig struct {
	Bind          bool   `mapstructure:"bind"`
	MinifyAliases bool   `mapstructure:"minify_aliases"`
	Location      string `mapstructure:"location"`
}

// flagKeys maps configuration keys to the flags overriding them.
var flagKeys = map[string]string{
	"dialect":                 "dialect",
	"models":                  "models",
	"database.dsn":            "dsn",
	"database.slow_threshold": "slow-threshold",
	"log.level":               "log-level",
	"log.format":              "log-format",
	"compile.bind":            "bind",
	"compile.minify_aliases":  "minify-aliases",
	"compile.location":        "location",
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env (STRATA_*) > config file > defaults. flags may be nil.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string, flags *pflag.FlagSet) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	// A relative models path is relative to the config file.
	if configPath != "" && cfg.Models != "" && !filepath.IsAbs(cfg.Models) && !flagChanged(flags, "models") && os.Getenv("STRATA_MODELS") == "" {
		cfg.Models = filepath.Join(filepath.Dir(configPath), cfg.Models)
	}
	return &cfg, configPath, nil
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dialect", "postgres")
	v.SetDefault("models", "models.yaml")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.slow_threshold", 100*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("compile.bind", false)
	v.SetDefault("compile.minify_aliases", false)
	v.SetDefault("compile.location", "UTC")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for strata.yaml or strata.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"strata.yaml", "strata.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// Logger returns a logger writing to w with the configured handler.
func (c LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
}

// TimeLocation returns the time zone time literals are compiled in.
func (c CompileConfig) TimeLocation() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("compile location: %w", err)
	}
	return loc, nil
}
