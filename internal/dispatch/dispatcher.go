package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wyatuestc/moonlight/internal/metrics"
	"github.com/wyatuestc/moonlight/obproto"
)

// DefaultQueueSize is the per channel buffer between publishers and handlers.
const DefaultQueueSize = 64

var (
	// ErrHandlerPanic is logged when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrInvalidReadResult is returned for a read result that does not carry
	// exactly one of response and error.
	ErrInvalidReadResult = errors.New("invalid read result")
)

// InstanceUpHandler is notified when a box instance becomes reachable.
type InstanceUpHandler func(ctx context.Context, ev obproto.InstanceUp)

// AlertHandler receives alerts raised by running alert blocks.
type AlertHandler func(ctx context.Context, alert obproto.Alert)

type readCompletion struct {
	result  obproto.ReadResult
	handler obproto.ReadHandler
}

// Dispatcher routes the three asynchronous notification channels to their
// handlers. Each channel is drained by its own goroutine, so delivery order is
// preserved within a channel but not across channels, and a slow handler never
// blocks the others or the goroutine that publishes.
//
// Each channel has a single handler slot; registering again replaces the
// previous handler. The handler is looked up when an event is delivered, not
// when it is published: an event still queued when a handler is registered
// goes to that handler. Events delivered while no handler is registered are
// dropped and counted.
type Dispatcher struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	instanceUp chan obproto.InstanceUp
	alerts     chan obproto.Alert
	reads      chan readCompletion

	mu           sync.RWMutex
	onInstanceUp InstanceUpHandler
	onAlert      AlertHandler
	onRead       obproto.ReadHandler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLog sets the logger.
var WithLog = func(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// WithMetrics sets the metrics the dispatcher reports to.
var WithMetrics = func(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithQueueSize sets the per channel buffer size.
var WithQueueSize = func(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.instanceUp = make(chan obproto.InstanceUp, n)
			d.alerts = make(chan obproto.Alert, n)
			d.reads = make(chan readCompletion, n)
		}
	}
}

// New creates a dispatcher. It does not deliver anything until Run is called.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:        slog.New(slog.DiscardHandler),
		metrics:    metrics.NewUnregistered(),
		instanceUp: make(chan obproto.InstanceUp, DefaultQueueSize),
		alerts:     make(chan obproto.Alert, DefaultQueueSize),
		reads:      make(chan readCompletion, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnInstanceUp registers the instance-up handler.
func (d *Dispatcher) OnInstanceUp(h InstanceUpHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onInstanceUp = h
}

// OnAlert registers the alert handler.
func (d *Dispatcher) OnAlert(h AlertHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAlert = h
}

// OnRead registers the handler for read completions that carry no handler of
// their own.
func (d *Dispatcher) OnRead(h obproto.ReadHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRead = h
}

// PublishInstanceUp queues an instance-up notification. It blocks only while
// the channel's queue is full.
func (d *Dispatcher) PublishInstanceUp(ctx context.Context, ev obproto.InstanceUp) error {
	select {
	case d.instanceUp <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAlert queues an alert.
func (d *Dispatcher) PublishAlert(ctx context.Context, alert obproto.Alert) error {
	select {
	case d.alerts <- alert:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishRead queues the completion of a read request. handler is the
// callback the request was issued with; if nil the registered read handler
// receives the result.
func (d *Dispatcher) PublishRead(ctx context.Context, result obproto.ReadResult, handler obproto.ReadHandler) error {
	if (result.Response == nil) == (result.Err == nil) {
		return ErrInvalidReadResult
	}
	select {
	case d.reads <- readCompletion{result: result, handler: handler}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-d.instanceUp:
				d.mu.RLock()
				h := d.onInstanceUp
				d.mu.RUnlock()
				d.invoke(metrics.ChannelInstanceUp, h != nil, func() { h(ctx, ev) })
			}
		}
	})

	grp.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case alert := <-d.alerts:
				d.mu.RLock()
				h := d.onAlert
				d.mu.RUnlock()
				d.metrics.AlertMessages.Add(float64(len(alert.Messages)))
				d.invoke(metrics.ChannelAlert, h != nil, func() { h(ctx, alert) })
			}
		}
	})

	grp.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case rc := <-d.reads:
				h := rc.handler
				if h == nil {
					d.mu.RLock()
					h = d.onRead
					d.mu.RUnlock()
				}
				d.invoke(metrics.ChannelRead, h != nil, func() { h(ctx, rc.result) })
			}
		}
	})

	return grp.Wait()
}

func (d *Dispatcher) invoke(channel string, registered bool, call func()) {
	if !registered {
		d.metrics.EventsDropped.WithLabelValues(channel).Inc()
		d.log.Debug("No handler registered, dropping event", "channel", channel)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.metrics.HandlerPanics.WithLabelValues(channel).Inc()
			d.log.Error("Handler failed", "channel", channel, "error", fmt.Errorf("%w: %v", ErrHandlerPanic, r))
		}
	}()
	d.metrics.EventsDispatched.WithLabelValues(channel).Inc()
	call()
}
