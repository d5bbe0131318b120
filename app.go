package moonlight

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wyatuestc/moonlight/internal/dispatch"
	"github.com/wyatuestc/moonlight/internal/metrics"
	"github.com/wyatuestc/moonlight/internal/poll"
	"github.com/wyatuestc/moonlight/internal/transport/kafka"
	"github.com/wyatuestc/moonlight/obconfig"
	"github.com/wyatuestc/moonlight/obproto"
	"github.com/wyatuestc/moonlight/obtopology"
)

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("moonlight: app already started")

// Deployer hands statements to the box instances.
type Deployer interface {
	Deploy(ctx context.Context, statements []obproto.Statement) error
}

// EventSource delivers the events of box instances to sink until ctx is
// cancelled.
type EventSource interface {
	Run(ctx context.Context, sink kafka.Sink) error
}

// App is the firewall control-plane application: it builds the statements
// for its settings, deploys them, and reacts to the events of the instances
// running them.
type App struct {
	name     string
	settings obconfig.Settings

	log     *slog.Logger
	metrics *metrics.Metrics

	resolver  obtopology.Resolver
	deployer  Deployer
	requester poll.Requester
	events    EventSource
	clock     poll.Clock

	statements []obproto.Statement
	dispatcher *dispatch.Dispatcher
	poller     *poll.Controller

	senderMtx     sync.RWMutex
	requestSender obproto.ReadHandler

	runMtx sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds the statements of the application and registers the default
// handlers. An unknown segment or an invalid graph is returned as an error.
func New(name string, settings obconfig.Settings, opts ...Option) (*App, error) {
	a := &App{
		name:     name,
		settings: settings,
		log:      NullLogger(),
		metrics:  metrics.NewUnregistered(),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.resolver == nil {
		a.resolver = obtopology.NewStaticTopology(settings.TopologySegments, settings.TopologyInstances)
	}

	a.logSummary()

	statements, err := a.createStatements()
	if err != nil {
		return nil, err
	}
	a.statements = statements

	a.dispatcher = dispatch.New(
		dispatch.WithLog(a.log.WithGroup("dispatch")),
		dispatch.WithMetrics(a.metrics),
	)

	pollOpts := []poll.Option{
		poll.WithLog(a.log.WithGroup("poll")),
		poll.WithMetrics(a.metrics),
		poll.WithHandler(a.onReadCompletion),
		poll.WithAttempts(settings.PollAttempts),
		poll.WithInterval(settings.PollInterval),
		poll.WithStopOnSuccess(settings.PollStopOnSuccess),
	}
	if a.clock != nil {
		pollOpts = append(pollOpts, poll.WithClock(a.clock))
	}
	a.poller = poll.New(a.requester, pollOpts...)

	a.SetInstanceUpListener(a.logInstanceUp)
	a.SetAlertListener(a.logAlert)
	a.SetRequestSender(a.logReadResult)

	return a, nil
}

// MustNew is like New but panics on error.
func MustNew(name string, settings obconfig.Settings, opts ...Option) *App {
	a, err := New(name, settings, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *App) logSummary() {
	s := a.settings
	a.log.Info("Running", "app", a.name, "segment", s.Segment)
	a.log.Info("[->] Input", "input", s.Input())
	a.log.Info("[<-] Output", "output", s.Output())
	alert := "off"
	if s.Alert {
		alert = "on"
	}
	a.log.Info("[!!] Alert is "+alert, "alert", s.Alert)
	a.log.Info("[>|] Dropping packets with TCP_DST port", "port", s.PortBlock)
}

func (a *App) createStatements() ([]obproto.Statement, error) {
	sel := obtopology.Select(a.name, a.settings)

	g, err := sel.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to build processing graph: %w", err)
	}
	for _, b := range g.Unreachable() {
		a.log.Warn("Block is not reachable from the root", "block", b.Name, "root", g.Root().Name)
	}

	loc, err := a.resolver.Resolve(a.settings.Segment)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve segment %d: %w", a.settings.Segment, err)
	}

	st, err := obproto.NewStatement(loc, g)
	if err != nil {
		return nil, err
	}
	return []obproto.Statement{st}, nil
}

// Name returns the application name.
func (a *App) Name() string {
	return a.name
}

// Statements returns the statements the application deploys.
func (a *App) Statements() []obproto.Statement {
	return append([]obproto.Statement(nil), a.statements...)
}

// Dispatcher returns the dispatcher routing the application's events.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// PollState returns the state of the polling controller.
func (a *App) PollState() poll.State {
	return a.poller.State()
}

// SetInstanceUpListener replaces the instance-up handler.
func (a *App) SetInstanceUpListener(h dispatch.InstanceUpHandler) {
	a.dispatcher.OnInstanceUp(h)
}

// SetAlertListener replaces the alert handler.
func (a *App) SetAlertListener(h dispatch.AlertHandler) {
	a.dispatcher.OnAlert(h)
}

// SetRequestSender replaces the handler receiving read responses and errors.
func (a *App) SetRequestSender(h obproto.ReadHandler) {
	a.senderMtx.Lock()
	a.requestSender = h
	a.senderMtx.Unlock()
	a.dispatcher.OnRead(h)
}

func (a *App) onReadCompletion(ctx context.Context, result obproto.ReadResult) {
	a.senderMtx.RLock()
	h := a.requestSender
	a.senderMtx.RUnlock()
	if h != nil {
		h(ctx, result)
	}
}

// HandleAppStart hands the topology to the polling controller, which then
// starts reading.
func (a *App) HandleAppStart(top obtopology.Topology) {
	a.log.Info("Got app start event", "segments", top.Segments())
	a.poller.Start(top)
}

// Run deploys the statements, then routes events and polls until ctx is
// cancelled, Close is called, or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.runMtx.Lock()
	if a.done != nil {
		a.runMtx.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.runMtx.Unlock()

	defer close(a.done)
	defer cancel()

	if err := a.deploy(ctx); err != nil {
		return err
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return a.dispatcher.Run(ctx)
	})
	if a.events != nil {
		grp.Go(func() error {
			return a.events.Run(ctx, a.dispatcher)
		})
	}
	if a.requester != nil {
		grp.Go(func() error {
			return a.poller.Run(ctx)
		})
	}
	return grp.Wait()
}

func (a *App) deploy(ctx context.Context) error {
	if a.deployer == nil {
		return nil
	}
	if err := a.deployer.Deploy(ctx, a.statements); err != nil {
		a.metrics.Deploys.WithLabelValues(metrics.StatusFailure).Inc()
		return fmt.Errorf("failed to deploy statements: %w", err)
	}
	a.metrics.Deploys.WithLabelValues(metrics.StatusSuccess).Inc()
	a.log.Info("Deployed statements", "count", len(a.statements))
	return nil
}

// Close stops a running application and waits for Run to return.
func (a *App) Close() error {
	a.runMtx.Lock()
	cancel, done := a.cancel, a.done
	a.runMtx.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (a *App) logInstanceUp(ctx context.Context, ev obproto.InstanceUp) {
	a.log.Info("Instance up", "app", a.name, "instance", ev.String())
}

func (a *App) logAlert(ctx context.Context, alert obproto.Alert) {
	for _, msg := range alert.Messages {
		a.log.Info("Got an alert", "block", alert.Block, "message", msg.Message)
		a.log.Info("Packet data", "block", alert.Block, "packet", hex.EncodeToString(msg.Packet))
	}
}

func (a *App) logReadResult(ctx context.Context, result obproto.ReadResult) {
	if result.Succeeded() {
		r := result.Response
		a.log.Info("Got a read response", "target", r.Block+"::"+r.Handle, "result", r.Result)
		return
	}
	a.log.Info("Got an error", "type", result.Err.Type, "message", result.Err.Message)
}
