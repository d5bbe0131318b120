package kafka

import (
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

type Option func(*Transport)

var WithLog = func(log *slog.Logger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// WithRequestTimeout forgets read requests that were not completed within d.
// Zero keeps them until Close.
var WithRequestTimeout = func(d time.Duration) Option {
	return func(t *Transport) {
		t.requestTimeout = d
	}
}

// WithClientOpts passes additional options to the underlying kgo client.
var WithClientOpts = func(opts ...kgo.Opt) Option {
	return func(t *Transport) {
		t.kgoOpts = append(t.kgoOpts, opts...)
	}
}
