// Package config loads the generator configuration.
//
// Values come from, in increasing precedence: built-in defaults, a TOML
// file and GIRBIND_* environment variables ("generate.output" is read from
// GIRBIND_GENERATE_OUTPUT). The CLI binds its flags on top.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"girbind/internal/errors"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "GIRBIND"

// FileName is the configuration file looked up in the working directory.
const FileName = "girbind.toml"

// Config is the complete generator configuration.
type Config struct {
	Generate Generate `mapstructure:"generate" toml:"generate" yaml:"generate"`
	Input    Input    `mapstructure:"input" toml:"input" yaml:"input"`
	Log      Log      `mapstructure:"log" toml:"log" yaml:"log"`
}

// Generate configures the emitted package.
type Generate struct {
	Package string `mapstructure:"package" toml:"package" yaml:"package"`
	Output  string `mapstructure:"output" toml:"output" yaml:"output"`
	// Namespace whose functions keep unprefixed names, the first input when empty
	Primary   string   `mapstructure:"primary" toml:"primary" yaml:"primary"`
	Headers   []string `mapstructure:"headers" toml:"headers" yaml:"headers"`
	PkgConfig []string `mapstructure:"pkg_config" toml:"pkg_config" yaml:"pkg_config"`
	// Leave out declarations with values that cannot cross in the required direction
	SkipUnsupported bool `mapstructure:"skip_unsupported" toml:"skip_unsupported" yaml:"skip_unsupported"`
	// Remove existing output without asking
	Clean bool `mapstructure:"clean" toml:"clean" yaml:"clean"`
}

// Input configures where declarations are read from.
type Input struct {
	// Introspection files to generate bindings for
	Gir []string `mapstructure:"gir" toml:"gir" yaml:"gir"`
	// Directories searched for included namespaces
	SearchPaths []string `mapstructure:"search_paths" toml:"search_paths" yaml:"search_paths"`
	// c:identifier or c:type values of elements removed before synthesis
	IgnoredElements []string `mapstructure:"ignored_elements" toml:"ignored_elements" yaml:"ignored_elements"`
}

// Log configures the logger.
type Log struct {
	JSON  bool `mapstructure:"json" toml:"json" yaml:"json"`
	Debug bool `mapstructure:"debug" toml:"debug" yaml:"debug"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Generate: Generate{
			Package:         "bindings",
			Output:          "output",
			Headers:         []string{},
			PkgConfig:       []string{},
			SkipUnsupported: true,
		},
		Input: Input{
			Gir:             []string{},
			SearchPaths:     []string{"/usr/share/gir-1.0", "/usr/local/share/gir-1.0"},
			IgnoredElements: []string{},
		},
	}
}

// SetDefaults registers every default value with v. Environment variables
// only override keys viper knows about, so every key gets one.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("generate.package", d.Generate.Package)
	v.SetDefault("generate.output", d.Generate.Output)
	v.SetDefault("generate.primary", d.Generate.Primary)
	v.SetDefault("generate.headers", d.Generate.Headers)
	v.SetDefault("generate.pkg_config", d.Generate.PkgConfig)
	v.SetDefault("generate.skip_unsupported", d.Generate.SkipUnsupported)
	v.SetDefault("generate.clean", d.Generate.Clean)

	v.SetDefault("input.gir", d.Input.Gir)
	v.SetDefault("input.search_paths", d.Input.SearchPaths)
	v.SetDefault("input.ignored_elements", d.Input.IgnoredElements)

	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.debug", d.Log.Debug)
}

// NewViper creates a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the file under path into v and decodes the result. An empty
// path reads nothing; a missing file is an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// LoadFile loads the configuration under path on top of defaults and the environment.
func LoadFile(path string) (*Config, error) {
	return Load(NewViper(), path)
}

// Find returns FileName in the working directory if it exists.
func Find() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	return ""
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// Validate reports settings the generator cannot run with.
func (c *Config) Validate() error {
	if len(c.Input.Gir) == 0 {
		return errors.WithHint(errors.New("no introspection files configured"),
			"set input.gir in the config file or pass them as arguments")
	}
	if c.Generate.Package == "" {
		return errors.New("generate.package must not be empty")
	}
	if c.Generate.Output == "" {
		return errors.New("generate.output must not be empty")
	}
	return nil
}
