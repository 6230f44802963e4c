// Package config builds the evaluator settings of spec §4.1/§6.2
// (allowedModules/allowedResources/rootDir/timeout/moduleCacheDir/
// externalProperties/environmentVariables) from environment variables,
// an optional .env file, and command-line flags.
//
// Grounded on the teacher's internal/config.LoadConfig (MORFX_* env vars
// with typed defaults) and internal/config/cli.go's pflag.FlagSet
// construction; .env loading follows the teacher's own
// godotenv.Load()-then-ignore-errors posture (cmd/morfx/main.go).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Settings is the evaluator configuration surface of §4.1/§6.2.
type Settings struct {
	AllowedModules       []string
	AllowedResources     []string
	ExternalProperties   map[string]string
	EnvironmentVariables map[string]string
	ModuleCacheDir       string
	RootDir              string
	Timeout              time.Duration
	Workers              int
}

// DefaultSettings mirrors the teacher's LoadConfig default posture: a
// conservative timeout, no root confinement, and an empty
// EnvironmentVariables map (LoadFromEnv fills it from the process
// environment).
func DefaultSettings() Settings {
	return Settings{
		ExternalProperties:   map[string]string{},
		EnvironmentVariables: map[string]string{},
		ModuleCacheDir:       defaultCacheDir(),
		Timeout:              60 * time.Second,
		Workers:              0, // 0 means "use all available CPUs", per the teacher's -w flag default.
	}
}

func defaultCacheDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.pkl/cache"
	}
	return ".pkl-cache"
}

// LoadFromEnv loads a .env file if present (errors ignored, matching the
// teacher's cmd/morfx/main.go posture) then reads PKL_* environment
// variables over the defaults.
func LoadFromEnv() Settings {
	_ = godotenv.Load()

	cfg := DefaultSettings()
	if v := os.Getenv("PKL_ALLOWED_MODULES"); v != "" {
		cfg.AllowedModules = splitCSV(v)
	}
	if v := os.Getenv("PKL_ALLOWED_RESOURCES"); v != "" {
		cfg.AllowedResources = splitCSV(v)
	}
	if v := os.Getenv("PKL_MODULE_CACHE_DIR"); v != "" {
		cfg.ModuleCacheDir = v
	}
	if v := os.Getenv("PKL_ROOT_DIR"); v != "" {
		cfg.RootDir = v
	}
	if v := os.Getenv("PKL_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("PKL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Workers = n
		}
	}
	for _, kv := range os.Environ() {
		if name, val, ok := strings.Cut(kv, "="); ok {
			cfg.EnvironmentVariables[name] = val
		}
	}
	return cfg
}

// BuildFlagSet declares the evaluator-settings flags shared by every
// `pkl` subcommand (eval/test/project), following the teacher's
// pflag.NewFlagSet + fs.Usage construction in internal/config/cli.go.
func BuildFlagSet(name string) (*pflag.FlagSet, *Settings) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	cfg := LoadFromEnv()

	fs.StringSliceVar(&cfg.AllowedModules, "allowed-modules", cfg.AllowedModules,
		"Allow-list regex patterns for module URI schemes.")
	fs.StringSliceVar(&cfg.AllowedResources, "allowed-resources", cfg.AllowedResources,
		"Allow-list regex patterns for resource URI schemes.")
	fs.StringVar(&cfg.ModuleCacheDir, "module-cache-dir", cfg.ModuleCacheDir,
		"Directory used to cache fetched package archives.")
	fs.StringVar(&cfg.RootDir, "root-dir", cfg.RootDir,
		"Confine file: module resolution to this directory.")
	fs.Int("timeout-seconds", int(cfg.Timeout/time.Second),
		"Evaluation deadline in seconds (0 disables the deadline).")

	return fs, &cfg
}

// ApplyFlags re-reads --timeout-seconds after Parse, since pflag.Int
// only returns a pointer populated after parsing.
func ApplyFlags(fs *pflag.FlagSet, cfg *Settings) {
	if secs, err := fs.GetInt("timeout-seconds"); err == nil {
		if secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		} else {
			cfg.Timeout = 0
		}
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
