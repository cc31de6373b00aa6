package machine

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/prolog-runtime/errors"
)

// ConfigEnv names the environment variable that points at a default
// configuration file.
const ConfigEnv = "PROLOG_RUNTIME_CONFIG"

// Config is the file form of a machine configuration.
type Config struct {
	// DoubleQuotes selects how "text" is read: string, codes, chars or atom.
	DoubleQuotes string `yaml:"double_quotes"`
	// Unknown selects what calling an unknown procedure does: error or fail.
	Unknown string `yaml:"unknown"`
	// MaxInferences bounds each query. Zero means unbounded.
	MaxInferences int64 `yaml:"max_inferences"`
	// Library loads the bundled lists library. Unset means true.
	Library *bool `yaml:"library"`
	// LogLevel is a zap level name. Empty disables logging.
	LogLevel string `yaml:"log_level"`
	// Modules are consulted in order when the machine is built.
	Modules []ModuleSource `yaml:"modules"`
}

// ModuleSource is program text for one module, given inline or by file.
type ModuleSource struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		DoubleQuotes: "string",
		Unknown:      "error",
	}
}

// LoadConfig reads a YAML configuration file. Fields absent from the file
// keep their defaults; relative module file paths are resolved against the
// file's directory.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Config("read "+path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse "+path)
	}
	dir := filepath.Dir(path)
	for i, m := range cfg.Modules {
		if m.File != "" && !filepath.IsAbs(m.File) {
			cfg.Modules[i].File = filepath.Join(dir, m.File)
		}
	}
	return cfg, cfg.Validate()
}

// ConfigFromEnv loads the file named by ConfigEnv, or returns the default
// configuration when the variable is unset.
func ConfigFromEnv() (Config, error) {
	path := os.Getenv(ConfigEnv)
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// Validate checks field values.
func (c Config) Validate() error {
	switch c.DoubleQuotes {
	case "", "string", "codes", "chars", "atom":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("double_quotes").
			Detail("unknown mode %q", c.DoubleQuotes).
			Build()
	}
	switch c.Unknown {
	case "", "error", "fail":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("unknown").
			Detail("unknown policy %q", c.Unknown).
			Build()
	}
	if c.MaxInferences < 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("max_inferences").
			Detail("must not be negative").
			Build()
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log_level")
		}
	}
	for i, m := range c.Modules {
		if m.Name == "" {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("modules", filepath.Base(m.File)).
				Detail("module %d has no name", i).
				Build()
		}
		if (m.Source == "") == (m.File == "") {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("modules", m.Name).
				Detail("exactly one of source and file must be set").
				Build()
		}
	}
	return nil
}

func (c Config) library() bool {
	return c.Library == nil || *c.Library
}

// NewLogger builds a production zap logger at the configured level writing
// to stderr. It returns a no-op logger when LogLevel is empty.
func (c Config) NewLogger() (*zap.Logger, error) {
	if c.LogLevel == "" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log_level")
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func (m ModuleSource) text() (string, error) {
	if m.File == "" {
		return m.Source, nil
	}
	data, err := os.ReadFile(m.File)
	if err != nil {
		return "", errors.New(errors.PhaseConsult, errors.KindIO).
			Path(m.Name).
			Cause(err).
			Detail("read %s", m.File).
			Build()
	}
	return string(data), nil
}
