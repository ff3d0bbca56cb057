package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

type config struct {
	Workers   int  `yaml:"workers"`
	QueueSize int  `yaml:"queue_size"`
	Tasks     int  `yaml:"tasks"`
	Depth     int  `yaml:"depth"`
	Yields    int  `yaml:"yields"`
	Verbose   bool `yaml:"verbose"`
}

func defaultConfig() config {
	return config{
		Workers:   runtime.GOMAXPROCS(0),
		QueueSize: 64,
		Tasks:     1000,
		Depth:     4,
		Yields:    2,
	}
}

// loadConfig reads a YAML configuration file on top of the defaults.
func loadConfig(path string) (config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

func (c *config) validate() error {
	switch {
	case c.Workers < 1:
		return errors.New("workers must be at least 1")
	case c.QueueSize < 0:
		return errors.New("queue_size cannot be negative")
	case c.Tasks < 0:
		return errors.New("tasks cannot be negative")
	case c.Depth < 1:
		return errors.New("depth must be at least 1")
	case c.Yields < 0:
		return errors.New("yields cannot be negative")
	}
	return nil
}
