package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wyatuestc/moonlight/internal/metrics"
	"github.com/wyatuestc/moonlight/obproto"
	"github.com/wyatuestc/moonlight/obtopology"
)

type State string

const (
	StateIdle             State = "IDLE"
	StateAwaitingTopology State = "AWAITING_TOPOLOGY"
	StatePolling          State = "POLLING"
	StateSucceeded        State = "SUCCEEDED"
	StateExhausted        State = "EXHAUSTED"
	StateCancelled        State = "CANCELLED"
)

const (
	DefaultAttempts = 10
	DefaultInterval = 10 * time.Second
)

// Target is what the controller polls: a read target on one box instance.
type Target struct {
	Instance int64
	Read     obproto.ReadTarget
}

// DefaultTarget is the block state the firewall application watches.
var DefaultTarget = Target{
	Instance: 22,
	Read:     obproto.ReadTarget{Block: "monkey", Handle: "business"},
}

// Requester issues read requests against a box instance. IssueRead returns
// obproto.ErrInstanceUnavailable when the instance cannot be reached right
// now; otherwise onComplete is eventually called with exactly one outcome.
type Requester interface {
	IssueRead(ctx context.Context, loc obproto.Location, target obproto.ReadTarget, onComplete obproto.ReadHandler) error
}

// Clock abstracts waiting so tests can drive the controller deterministically.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Controller issues a bounded number of time-spaced read requests against
// one instance once it has been handed the application topology.
type Controller struct {
	log       *slog.Logger
	metrics   *metrics.Metrics
	requester Requester
	clock     Clock
	handler   obproto.ReadHandler

	target        Target
	attempts      int
	interval      time.Duration
	stopOnSuccess bool

	stateMtx sync.RWMutex
	state    State

	topology  chan obtopology.Topology
	succeeded chan struct{}

	location obproto.Location
	schedule backoff.BackOff
	issued   int
}

// New returns an idle controller. Run must be called for it to do anything.
func New(requester Requester, opts ...Option) *Controller {
	c := &Controller{
		log:       slog.New(slog.DiscardHandler),
		metrics:   metrics.NewUnregistered(),
		requester: requester,
		clock:     realClock{},
		target:    DefaultTarget,
		attempts:  DefaultAttempts,
		interval:  DefaultInterval,
		state:     StateIdle,
		topology:  make(chan obtopology.Topology, 1),
		succeeded: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start hands the controller the application topology. Only the first call
// has an effect.
func (c *Controller) Start(top obtopology.Topology) {
	select {
	case c.topology <- top:
	default:
		c.log.Warn("Topology already provided, ignoring")
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.stateMtx.RLock()
	defer c.stateMtx.RUnlock()
	return c.state
}

// Attempts returns how many read requests were attempted so far.
func (c *Controller) Attempts() int {
	c.stateMtx.RLock()
	defer c.stateMtx.RUnlock()
	return c.issued
}

func (c *Controller) changeState(newState State) {
	c.stateMtx.Lock()
	defer c.stateMtx.Unlock()
	c.log.Info("Change state", "from", c.state, "to", newState)
	c.state = newState
}

// Run drives the controller until the attempts are used up, a read succeeds
// with stop-on-success enabled, or ctx is cancelled. Exhaustion is not an
// error.
func (c *Controller) Run(ctx context.Context) error {
	if c.State() != StateIdle {
		return nil
	}
	c.changeState(StateAwaitingTopology)
	return c.Loop(ctx)
}

// State transitions may only be done from within the loop
func (c *Controller) Loop(ctx context.Context) error {
	for {
		switch c.State() {
		case StateAwaitingTopology:
			c.handleAwaitingTopology(ctx)
		case StatePolling:
			c.handlePolling(ctx)
		case StateExhausted:
			c.metrics.PollExhausted.Inc()
			c.log.Warn("Giving up reading", "target", c.target.Read, "attempts", c.Attempts())
			return nil
		case StateSucceeded, StateCancelled:
			return nil
		default:
			return nil
		}
	}
}

func (c *Controller) handleAwaitingTopology(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.changeState(StateCancelled)
	case top := <-c.topology:
		loc, err := top.Instance(c.target.Instance)
		if err != nil {
			c.log.Warn("Target instance not in topology", "instance", c.target.Instance, "error", err)
			loc = obproto.InstanceLocation(c.target.Instance)
		}
		c.location = loc
		c.schedule = backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(c.interval), uint64(c.attempts-1)),
			ctx,
		)
		c.schedule.Reset()
		c.changeState(StatePolling)
	}
}

func (c *Controller) handlePolling(ctx context.Context) {
	if c.stopOnSuccess && c.hasSucceeded() {
		c.changeState(StateSucceeded)
		return
	}

	c.attempt(ctx)

	next := c.schedule.NextBackOff()
	if next == backoff.Stop {
		if ctx.Err() != nil {
			c.changeState(StateCancelled)
			return
		}
		c.changeState(StateExhausted)
		return
	}

	var succeeded <-chan struct{}
	if c.stopOnSuccess {
		succeeded = c.succeeded
	}

	select {
	case <-ctx.Done():
		c.changeState(StateCancelled)
	case <-succeeded:
		c.changeState(StateSucceeded)
	case <-c.clock.After(next):
	}
}

func (c *Controller) attempt(ctx context.Context) {
	c.stateMtx.Lock()
	c.issued++
	n := c.issued
	c.stateMtx.Unlock()

	log := c.log.With("attempt", n, "location", c.location, "target", c.target.Read)
	err := c.requester.IssueRead(ctx, c.location, c.target.Read, c.complete)
	switch {
	case err == nil:
		c.metrics.ReadAttempts.WithLabelValues(metrics.OutcomeIssued).Inc()
		log.Debug("Read request issued")
	case errors.Is(err, obproto.ErrInstanceUnavailable):
		c.metrics.ReadAttempts.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		log.Warn("Unable to reach instance")
	default:
		c.metrics.ReadAttempts.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error("Failed to issue read request", "error", err)
	}
}

// complete is the callback every request is issued with.
func (c *Controller) complete(ctx context.Context, result obproto.ReadResult) {
	if result.Succeeded() {
		c.metrics.ReadCompletions.WithLabelValues(metrics.StatusSuccess).Inc()
		select {
		case c.succeeded <- struct{}{}:
		default:
		}
	} else {
		c.metrics.ReadCompletions.WithLabelValues(metrics.StatusFailure).Inc()
	}
	if c.handler != nil {
		c.handler(ctx, result)
	}
}

func (c *Controller) hasSucceeded() bool {
	select {
	case <-c.succeeded:
		return true
	default:
		return false
	}
}
