package poll

import (
	"log/slog"
	"time"

	"github.com/wyatuestc/moonlight/internal/metrics"
	"github.com/wyatuestc/moonlight/obproto"
)

type Option func(*Controller)

var WithLog = func(log *slog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

var WithMetrics = func(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

var WithClock = func(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithHandler sets the callback receiving every read completion.
var WithHandler = func(h obproto.ReadHandler) Option {
	return func(c *Controller) {
		c.handler = h
	}
}

var WithTarget = func(t Target) Option {
	return func(c *Controller) {
		c.target = t
	}
}

// WithAttempts bounds the number of read requests. Values below 1 are ignored.
var WithAttempts = func(n int) Option {
	return func(c *Controller) {
		if n >= 1 {
			c.attempts = n
		}
	}
}

var WithInterval = func(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.interval = d
		}
	}
}

// WithStopOnSuccess ends polling after the first successful read response
// instead of using up all attempts.
var WithStopOnSuccess = func(stop bool) Option {
	return func(c *Controller) {
		c.stopOnSuccess = stop
	}
}
