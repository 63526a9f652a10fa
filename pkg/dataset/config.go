package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidLogLevel is returned when the logging level cannot be parsed
	ErrInvalidLogLevel = errors.New("invalid logging level")
	// ErrInvalidSchedule is returned when the schedule is not a valid cron expression
	ErrInvalidSchedule = errors.New("invalid schedule expression")
	// ErrInvalidIgnoreBefore is returned when the ignore-before date cannot be parsed
	ErrInvalidIgnoreBefore = errors.New("invalid ignoreBefore date, expected YYYY-MM-DD")
)

// Config represents the monitor configuration for one dataset, loaded from
// data-monitoring/monitor.yaml. The file is optional; defaults apply.
type Config struct {
	// Core settings
	Logging     string `yaml:"logging" default:"info" validate:"oneof=panic fatal warn info debug trace"`
	DatasetName string `yaml:"datasetName"`
	MetricsAddr string `yaml:"metricsAddr"`

	// Schedule documents the cadence the external scheduler runs the pipeline
	// at. Validated, never acted on in-process.
	Schedule string `yaml:"schedule"`

	// LegacyExceptions switches exception markers to the bare
	// deviation.txt/no-data.txt names.
	LegacyExceptions bool `yaml:"legacyExceptions"`

	// IgnoreBefore grandfathers identifiers whose files all predate this date.
	IgnoreBefore string `yaml:"ignoreBefore"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Logging); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging)
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, c.Schedule, err)
		}
	}

	if c.IgnoreBefore != "" {
		if _, err := time.Parse("2006-01-02", c.IgnoreBefore); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidIgnoreBefore, c.IgnoreBefore)
		}
	}

	return nil
}

// IgnoreBeforeTime returns the parsed cutoff, or the zero time when unset.
func (c *Config) IgnoreBeforeTime() time.Time {
	if c.IgnoreBefore == "" {
		return time.Time{}
	}
	t, _ := time.Parse("2006-01-02", c.IgnoreBefore)
	return t
}

// LoadConfig loads the monitor configuration for a dataset root. A missing
// file yields defaults.
func LoadConfig(root string) (*Config, error) {
	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(Paths{Root: root}.MonitorConfig()) //nolint:gosec // Dataset-derived path
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, err
	}

	if config.DatasetName == "" {
		config.DatasetName = filepath.Base(root)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
