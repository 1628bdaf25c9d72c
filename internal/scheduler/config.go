package scheduler

import (
	"time"
)

// Config controls scheduler cadence.
type Config struct {
	RunInterval       time.Duration
	JobTimeout        time.Duration
	AutodraftInterval time.Duration
	LockTTL           time.Duration
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Minute,
		JobTimeout:        30 * time.Second,
		AutodraftInterval: 6 * time.Hour,
		LockTTL:           5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.AutodraftInterval <= 0 {
		c.AutodraftInterval = defaults.AutodraftInterval
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
