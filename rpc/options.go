package rpc

import "time"

type (
	Options struct {
		// heights older than maxHeightAge are reported as stale
		maxHeightAge time.Duration
	}

	Option func(*Options)
)

func defaultOptions() *Options {
	return &Options{
		maxHeightAge: 10 * time.Second,
	}
}

func WithMaxHeightAge(d time.Duration) Option {
	return func(c *Options) {
		c.maxHeightAge = d
	}
}
