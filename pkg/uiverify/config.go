package uiverify

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Timeouts bounds every wait a run performs.
type Timeouts struct {
	Bootstrap   time.Duration `yaml:"bootstrap"`
	Appear      time.Duration `yaml:"appear"`
	Poll        time.Duration `yaml:"poll"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	Settle      time.Duration `yaml:"settle"`
	Transient   time.Duration `yaml:"transient"`
	Terminal    time.Duration `yaml:"terminal"`
	Flow        time.Duration `yaml:"flow"`
}

// Config holds run configuration.
type Config struct {
	BaseURL   string   `yaml:"base_url"`
	Engine    string   `yaml:"engine"`
	OutputDir string   `yaml:"output_dir"`
	Headless  bool     `yaml:"headless"`
	Viewport  Viewport `yaml:"viewport"`
	Timeouts  Timeouts `yaml:"timeouts"`

	// Clock measures waits. Nil uses the system monotonic clock.
	Clock Clock `yaml:"-"`
}

// DefaultConfig returns the configuration for a local dev server.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:5173",
		Engine:    "rod",
		OutputDir: "verification",
		Headless:  true,
		Timeouts: Timeouts{
			Bootstrap: 30 * time.Second,
			Appear:    2 * time.Second,
			Poll:      25 * time.Millisecond,
			Settle:    3 * time.Second,
			Transient: 200 * time.Millisecond,
			Terminal:  time.Second,
			Flow:      2 * time.Minute,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys absent from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.Viewport.Width < 0 || c.Viewport.Height < 0 {
		errs = append(errs, fmt.Errorf("viewport %dx%d is invalid", c.Viewport.Width, c.Viewport.Height))
	}
	t := c.Timeouts
	for name, d := range map[string]time.Duration{
		"bootstrap": t.Bootstrap, "appear": t.Appear, "poll": t.Poll,
		"settle": t.Settle, "transient": t.Transient, "terminal": t.Terminal, "flow": t.Flow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s must be positive", name))
		}
	}
	if t.SettleDelay < 0 {
		errs = append(errs, errors.New("timeouts.settle_delay must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) clock() Clock {
	if c.Clock == nil {
		return monotonic
	}
	return c.Clock
}
