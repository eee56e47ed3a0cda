package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gnana997/declassify/pkg/runner"
)

// defaultConfigPath is read when --config is not given. It may be absent.
var defaultConfigPath = filepath.Join(".declassify", "config.yaml")

// ProjectConfig holds the contents of .declassify/config.yaml.
type ProjectConfig struct {
	// Include and Exclude are doublestar globs relative to each root.
	Include []string `yaml:"include" validate:"dive,required,glob"`
	Exclude []string `yaml:"exclude" validate:"dive,required,glob"`

	Log LogConfig `yaml:"log"`

	// Workers bounds parallel conversions; 0 picks one per CPU.
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`
	// CacheSize is the number of cached results; -1 disables the cache.
	CacheSize int `yaml:"cache_size" validate:"gte=-1"`

	MCP MCPConfig `yaml:"mcp"`
}

// LogConfig selects the diagnostic logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// MCPConfig configures the serve command.
type MCPConfig struct {
	// CallLog is a JSONL file recording every tool call.
	CallLog string `yaml:"call_log"`
}

func defaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Exclude: append([]string(nil), runner.DefaultExclude...),
		Log:     LogConfig{Level: "warn", Format: "text"},
	}
}

var configValidate = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
		return doublestar.ValidatePattern(fl.Field().String())
	})
	return v
}

// loadProjectConfig reads and validates the project config. With an empty
// path the default location is tried and defaults are used when it does
// not exist; an explicit path must exist.
func loadProjectConfig(path string) (*ProjectConfig, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg := defaultProjectConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func validateConfig(cfg *ProjectConfig) error {
	err := configValidate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

const configTemplate = `# declassify project configuration
include: []
exclude:
%s
log:
  level: warn
  format: text
workers: 0
cache_size: 256
mcp:
  call_log: ""
`

// writeDefaultConfig creates the default config file unless one exists.
func writeDefaultConfig(path string) (bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	var excludes strings.Builder
	for i, pattern := range runner.DefaultExclude {
		if i > 0 {
			excludes.WriteByte('\n')
		}
		fmt.Fprintf(&excludes, "  - %q", pattern)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf(configTemplate, excludes.String())), 0644); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}
