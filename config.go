package moonlight

import (
	"log/slog"

	"github.com/wyatuestc/moonlight/internal/metrics"
	"github.com/wyatuestc/moonlight/internal/poll"
	"github.com/wyatuestc/moonlight/obtopology"
)

// Option is a function that configures an App
type Option func(*App)

// WithLog sets the logger for the application
var WithLog = func(log *slog.Logger) Option {
	return func(a *App) {
		a.log = log
	}
}

// WithResolver sets how the configured segment is resolved to a location.
// Defaults to the static topology of the settings.
var WithResolver = func(r obtopology.Resolver) Option {
	return func(a *App) {
		a.resolver = r
	}
}

// WithDeployer sets where statements are deployed on Run
var WithDeployer = func(d Deployer) Option {
	return func(a *App) {
		a.deployer = d
	}
}

// WithRequester sets the transport the polling controller issues read
// requests through. Without one the controller is not started.
var WithRequester = func(r poll.Requester) Option {
	return func(a *App) {
		a.requester = r
	}
}

// WithEventSource sets where instance-up, alert and read completion events
// come from.
var WithEventSource = func(src EventSource) Option {
	return func(a *App) {
		a.events = src
	}
}

// WithMetrics sets the collectors the application reports to
var WithMetrics = func(m *metrics.Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// WithClock replaces the clock the polling controller waits on
var WithClock = func(c poll.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// NullWriter is a writer that discards all data
type NullWriter struct{}

func (NullWriter) Write([]byte) (int, error) { return 0, nil }

// NullLogger creates a logger that discards all output
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(NullWriter{}, nil))
}
