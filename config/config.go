// Package config loads quantlab settings from a YAML file, command-line flags
// and the environment, in that order of increasing precedence.
package config

import (
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvTutorAPIKey overrides tutor.api_key when set.
const EnvTutorAPIKey = "QUANTLAB_TUTOR_API_KEY"

type Config struct {
	Addr        string   `yaml:"addr" default:":8080" validate:"required"`
	TLSDomains  []string `yaml:"tls_domains,omitempty"`
	TLSCacheDir string   `yaml:"tls_cache_dir" default:"cert-cache"`
	// Seed for all random sources, 0 picks one from the clock.
	Seed uint64 `yaml:"seed"`

	Series    SeriesConfig    `yaml:"series"`
	Frontier  FrontierConfig  `yaml:"frontier"`
	OrderBook OrderBookConfig `yaml:"orderbook"`
	Tutor     TutorConfig     `yaml:"tutor"`
	Log       LogConfig       `yaml:"log"`
}

type SeriesConfig struct {
	Days       int    `yaml:"days" default:"150" validate:"gte=1,lte=5000"`
	FilterMode string `yaml:"filter_mode" default:"frozen" validate:"oneof=frozen adaptive"`
}

type FrontierConfig struct {
	Count int `yaml:"count" default:"500" validate:"gte=1,lte=100000"`
}

type OrderBookConfig struct {
	MidPrice     float64       `yaml:"mid_price" default:"100" validate:"gt=0"`
	TickInterval time.Duration `yaml:"tick_interval" default:"800ms" validate:"gte=10ms"`
}

type TutorConfig struct {
	APIURL        string        `yaml:"api_url" default:"https://generativelanguage.googleapis.com/v1beta/openai/chat/completions" validate:"required,url"`
	APIKey        string        `yaml:"api_key,omitempty"`
	Model         string        `yaml:"model" default:"gemini-2.5-flash" validate:"required"`
	Timeout       time.Duration `yaml:"timeout" default:"60s" validate:"gte=1s"`
	MaxAttempts   int           `yaml:"max_attempts" default:"1" validate:"gte=1,lte=10"`
	TranscriptDir string        `yaml:"transcript_dir" default:"./wal/transcript" validate:"required"`
}

type LogConfig struct {
	Level       string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// Flags command-line options.
type Flags struct {
	ConfigPath string
	Setup      bool

	addr *string
	seed *uint64
	days *int
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string, output io.Writer) (Flags, error) {
	fs := flag.NewFlagSet("quantlab", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}

	configPath := fs.String("config", "", "path to yaml config")
	setup := fs.Bool("setup", false, "run the interactive configuration wizard")
	addr := fs.String("addr", "", "listen address, overrides config")
	seed := fs.Uint64("seed", 0, "random seed, overrides config")
	days := fs.Int("days", 0, "number of days in the price series, overrides config")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	f := Flags{ConfigPath: *configPath, Setup: *setup}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			f.addr = addr
		case "seed":
			f.seed = seed
		case "days":
			f.days = days
		}
	})

	return f, nil
}

// Default returns a config with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, errors.Wrap(err, "apply defaults")
	}
	return &c, nil
}

// Load builds the config: defaults, then the YAML file if any, then flag
// overrides and the environment. The result is validated.
func Load(f Flags) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if f.ConfigPath != "" {
		b, err := os.ReadFile(f.ConfigPath)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	if f.addr != nil {
		c.Addr = *f.addr
	}
	if f.seed != nil {
		c.Seed = *f.seed
	}
	if f.days != nil {
		c.Series.Days = *f.days
	}
	if v := strings.TrimSpace(os.Getenv(EnvTutorAPIKey)); v != "" {
		c.Tutor.APIKey = v
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	return c, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// Write stores c as YAML at path.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}
