package moonlight

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wyatuestc/moonlight/internal/metrics"
	"github.com/wyatuestc/moonlight/internal/transport/kafka"
	"github.com/wyatuestc/moonlight/obconfig"
	"github.com/wyatuestc/moonlight/obgraph"
	"github.com/wyatuestc/moonlight/obproto"
	"github.com/wyatuestc/moonlight/obtopology"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func settings(t *testing.T, log *slog.Logger, values map[string]string) obconfig.Settings {
	t.Helper()
	return obconfig.FromMap(values).Settings(log)
}

func blockNames(g *obgraph.Graph) []string {
	var names []string
	for _, b := range g.Blocks() {
		names = append(names, b.Name)
	}
	sort.Strings(names)
	return names
}

func connectorNames(g *obgraph.Graph) []string {
	var names []string
	for _, c := range g.Connectors() {
		names = append(names, c.String())
	}
	sort.Strings(names)
	return names
}

type fakeDeployer struct {
	mu    sync.Mutex
	calls [][]obproto.Statement
	err   error
}

func (d *fakeDeployer) Deploy(ctx context.Context, statements []obproto.Statement) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, statements)
	return d.err
}

func (d *fakeDeployer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// answeringRequester completes every read request right away.
type answeringRequester struct {
	mu     sync.Mutex
	issued int
}

func (r *answeringRequester) IssueRead(ctx context.Context, loc obproto.Location, target obproto.ReadTarget, onComplete obproto.ReadHandler) error {
	r.mu.Lock()
	r.issued++
	r.mu.Unlock()
	onComplete(ctx, obproto.ReadResult{Response: &obproto.ReadResponse{Block: target.Block, Handle: target.Handle, Result: loc.String()}})
	return nil
}

type immediateClock struct{}

func (immediateClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// scriptedEvents replays a fixed list of alerts into the sink.
type scriptedEvents struct {
	alerts []obproto.Alert
}

func (s *scriptedEvents) Run(ctx context.Context, sink kafka.Sink) error {
	for _, a := range s.alerts {
		if err := sink.PublishAlert(ctx, a); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}

func TestNew_AlertOn(t *testing.T) {
	log, _ := testLogger()
	app, err := New("SampleApp", settings(t, log, map[string]string{
		obconfig.PropPortBlock: "80",
		obconfig.PropAlert:     "true",
	}), WithLog(log))
	assert.NoError(t, err)

	statements := app.Statements()
	assert.Equal(t, 1, len(statements))
	assert.Equal(t, obproto.SegmentLocation(220), statements[0].Location())

	g := statements[0].Graph()
	assert.Equal(t, "FromDevice_SampleApp", g.Root().Name)
	assert.Equal(t, []string{
		"Alert_SampleApp",
		"Discard_SampleApp",
		"FromDevice_SampleApp",
		"HeaderClassifier_SampleApp",
		"ToDevice_SampleApp",
	}, blockNames(g))
	assert.Equal(t, []string{
		"Alert_SampleApp.0 -> Discard_SampleApp.0",
		"FromDevice_SampleApp.0 -> HeaderClassifier_SampleApp.0",
		"HeaderClassifier_SampleApp.0 -> Alert_SampleApp.0",
		"HeaderClassifier_SampleApp.1 -> ToDevice_SampleApp.0",
	}, connectorNames(g))
}

func TestNew_AlertOff(t *testing.T) {
	log, buf := testLogger()
	app, err := New("SampleApp", settings(t, log, map[string]string{
		obconfig.PropAlert:     "false",
		obconfig.PropInUseIfc:  "false",
		obconfig.PropOutUseIfc: "false",
	}), WithLog(log))
	assert.NoError(t, err)

	g := app.Statements()[0].Graph()
	assert.Equal(t, []string{
		"Discard_SampleApp",
		"FromDump_SampleApp",
		"HeaderClassifier_SampleApp",
		"ToDump_SampleApp",
	}, blockNames(g))
	assert.Equal(t, []string{
		"FromDump_SampleApp.0 -> HeaderClassifier_SampleApp.0",
		"HeaderClassifier_SampleApp.0 -> Discard_SampleApp.0",
		"HeaderClassifier_SampleApp.1 -> ToDump_SampleApp.0",
	}, connectorNames(g))

	out := buf.String()
	assert.Contains(t, out, "Alert is off")
	assert.Contains(t, out, "input=in_dump.pcap")
	assert.Contains(t, out, "output=out_dump.pcap")
}

func TestNew_MalformedPortFallsBack(t *testing.T) {
	log, buf := testLogger()
	app, err := New("SampleApp", settings(t, log, map[string]string{
		obconfig.PropPortBlock: "not-a-number",
		obconfig.PropSegment:   "also-not-a-number",
	}), WithLog(log))
	assert.NoError(t, err)

	assert.Equal(t, obproto.SegmentLocation(220), app.Statements()[0].Location())

	out := buf.String()
	assert.Contains(t, out, "Error parsing property, using default")
	assert.Contains(t, out, "property=port_block")
	assert.Contains(t, out, "property=segment")
	assert.Contains(t, out, "port=80")
	assert.Contains(t, out, "msg=Running app=SampleApp segment=220")
}

func TestNew_UnresolvedSegment(t *testing.T) {
	log, _ := testLogger()
	_, err := New("SampleApp", settings(t, log, map[string]string{
		obconfig.PropSegment: "999",
	}), WithLog(log))
	assert.True(t, errors.Is(err, obproto.ErrLocationUnresolved))

	assert.Panics(t, func() {
		MustNew("SampleApp", settings(t, log, map[string]string{obconfig.PropSegment: "999"}))
	})
}

func TestNew_CustomResolver(t *testing.T) {
	top := obtopology.NewStaticTopology([]int64{7}, nil)
	app, err := New("SampleApp", settings(t, NullLogger(), map[string]string{
		obconfig.PropSegment: "7",
	}), WithResolver(top))
	assert.NoError(t, err)
	assert.Equal(t, obproto.SegmentLocation(7), app.Statements()[0].Location())
}

func TestApp_RunDeploysOnce(t *testing.T) {
	deployer := &fakeDeployer{}
	m := metrics.NewUnregistered()
	app := MustNew("SampleApp", obconfig.DefaultSettings(), WithDeployer(deployer), WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for deployer.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	assert.NoError(t, <-done)

	assert.Equal(t, 1, deployer.Calls())
	assert.Equal(t, app.Statements(), deployer.calls[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deploys.WithLabelValues(metrics.StatusSuccess)))

	assert.True(t, errors.Is(app.Run(context.Background()), ErrAlreadyStarted))
	assert.Equal(t, 1, deployer.Calls())
}

func TestApp_DeployFailure(t *testing.T) {
	deployer := &fakeDeployer{err: errors.New("no broker")}
	m := metrics.NewUnregistered()
	app := MustNew("SampleApp", obconfig.DefaultSettings(), WithDeployer(deployer), WithMetrics(m))

	err := app.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deploys.WithLabelValues(metrics.StatusFailure)))
}

func TestApp_CloseBeforeRun(t *testing.T) {
	app := MustNew("SampleApp", obconfig.DefaultSettings())
	assert.NoError(t, app.Close())
}

func TestApp_Close(t *testing.T) {
	app := MustNew("SampleApp", obconfig.DefaultSettings())

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	// Close may race Run's start; retry until Run has registered itself
	deadline := time.Now().Add(time.Second)
	for {
		app.runMtx.Lock()
		started := app.done != nil
		app.runMtx.Unlock()
		if started || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	assert.NoError(t, app.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestApp_AlertListener(t *testing.T) {
	alert := obproto.Alert{
		Block: "Alert_SampleApp",
		Messages: []obproto.AlertMessage{
			{Message: "blocked", Packet: []byte{0xde, 0xad}},
			{Message: "blocked again"},
		},
	}

	t.Run("default handler logs every message", func(t *testing.T) {
		log, buf := testLogger()
		app := MustNew("SampleApp", obconfig.DefaultSettings(), WithLog(log),
			WithEventSource(&scriptedEvents{alerts: []obproto.Alert{alert}}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- app.Run(ctx) }()

		deadline := time.Now().Add(time.Second)
		for !bytes.Contains([]byte(buf.String()), []byte("blocked again")) && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		cancel()
		assert.NoError(t, <-done)

		out := buf.String()
		assert.Contains(t, out, "message=blocked")
		assert.Contains(t, out, "packet=dead")
		assert.Contains(t, out, `message="blocked again"`)
	})

	t.Run("replaced handler", func(t *testing.T) {
		app := MustNew("SampleApp", obconfig.DefaultSettings(),
			WithEventSource(&scriptedEvents{alerts: []obproto.Alert{alert}}))

		got := make(chan obproto.Alert, 1)
		app.SetAlertListener(func(ctx context.Context, a obproto.Alert) { got <- a })

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = app.Run(ctx) }()

		select {
		case a := <-got:
			assert.Equal(t, alert, a)
		case <-time.After(time.Second):
			t.Fatal("alert not delivered")
		}
	})
}

func TestApp_Polling(t *testing.T) {
	log, _ := testLogger()
	s := settings(t, log, map[string]string{
		obconfig.PropPollAttempts:      "3",
		obconfig.PropPollStopOnSuccess: "false",
	})

	requester := &answeringRequester{}
	m := metrics.NewUnregistered()
	app := MustNew("SampleApp", s, WithLog(log), WithRequester(requester), WithClock(immediateClock{}), WithMetrics(m))

	var (
		mu      sync.Mutex
		results []obproto.ReadResult
	)
	app.SetRequestSender(func(ctx context.Context, r obproto.ReadResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})

	app.HandleAppStart(obtopology.NewStaticTopology(s.TopologySegments, s.TopologyInstances))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for testutil.ToFloat64(m.PollExhausted) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	assert.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, len(results))
	for _, r := range results {
		assert.True(t, r.Succeeded())
		assert.Equal(t, "monkey", r.Response.Block)
		assert.Equal(t, "business", r.Response.Handle)
		assert.Equal(t, "instance:22", r.Response.Result)
	}
}
