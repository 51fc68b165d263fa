package api

import (
	"time"

	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/errors"
)

// Config holds the HTTP server configuration
type Config struct {
	Listen       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// default waterfall snapshot size in pixels
	SnapshotWidth  int
	SnapshotHeight int
	// upper bound for requested snapshot sizes
	MaxSnapshotPixels int
}

// DefaultConfig returns the server defaults
func DefaultConfig() Config {
	return Config{
		Listen:            "127.0.0.1:8080",
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		SnapshotWidth:     1024,
		SnapshotHeight:    512,
		MaxSnapshotPixels: 4096 * 4096,
	}
}

// ConfigFromSettings builds a Config from the webserver settings
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	return cfg
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.Newf("listen address is empty").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if c.SnapshotWidth <= 0 || c.SnapshotHeight <= 0 {
		return errors.Newf("invalid snapshot size %dx%d", c.SnapshotWidth, c.SnapshotHeight).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
