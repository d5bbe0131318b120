package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/wyatuestc/moonlight/obproto"
)

// HeaderXID is the record header carrying the request correlation id.
const HeaderXID = "xid"

// Topics are the three topics exchanged with box instances.
type Topics struct {
	Statements string
	Requests   string
	Events     string
}

// TopicsFor derives the topic names from a prefix.
func TopicsFor(prefix string) Topics {
	return Topics{
		Statements: prefix + ".statements",
		Requests:   prefix + ".requests",
		Events:     prefix + ".events",
	}
}

// All returns the topic names.
func (t Topics) All() []string {
	return []string{t.Statements, t.Requests, t.Events}
}

// Sink receives decoded events. *dispatch.Dispatcher implements it.
type Sink interface {
	PublishInstanceUp(ctx context.Context, ev obproto.InstanceUp) error
	PublishAlert(ctx context.Context, alert obproto.Alert) error
	PublishRead(ctx context.Context, result obproto.ReadResult, handler obproto.ReadHandler) error
}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Transport talks to box instances over Kafka. Statements and read requests
// are produced; instance-up, alert and read completion events are consumed.
type Transport struct {
	client   *kgo.Client
	admin    *kadm.Client
	producer producer
	log      *slog.Logger
	topics   Topics

	requestTimeout time.Duration
	newXID         func() string
	kgoOpts        []kgo.Opt

	mu        sync.Mutex
	pending   map[string]*pendingRead
	reachable map[obproto.Location]struct{}
}

type pendingRead struct {
	handler obproto.ReadHandler
	timer   *time.Timer
}

// New connects to brokers. It consumes the events topic from its end, so only
// events published after start are seen.
func New(brokers []string, prefix string, opts ...Option) (*Transport, error) {
	t := newTransport(nil, prefix, opts...)

	clientOpts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(t.topics.Events),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.AllowAutoTopicCreation(),
	}
	client, err := kgo.NewClient(append(clientOpts, t.kgoOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	t.client = client
	t.admin = kadm.NewClient(client)
	t.producer = client
	return t, nil
}

func newTransport(p producer, prefix string, opts ...Option) *Transport {
	t := &Transport{
		producer:  p,
		log:       slog.New(slog.DiscardHandler),
		topics:    TopicsFor(prefix),
		newXID:    func() string { return uuid.NewString() },
		pending:   map[string]*pendingRead{},
		reachable: map[obproto.Location]struct{}{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Topics returns the topic names in use.
func (t *Transport) Topics() Topics {
	return t.topics
}

// EnsureTopics creates the topics that do not exist yet.
func (t *Transport) EnsureTopics(ctx context.Context, partitions int32, replicationFactor int16) error {
	resp, err := t.admin.CreateTopics(ctx, partitions, replicationFactor, map[string]*string{}, t.topics.All()...)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("failed to create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Deploy produces one record per statement, keyed by its location, and waits
// until all are acknowledged.
func (t *Transport) Deploy(ctx context.Context, statements []obproto.Statement) error {
	records := make([]*kgo.Record, 0, len(statements))
	for _, st := range statements {
		value, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to encode statement for %s: %w", st.Location(), err)
		}
		records = append(records, &kgo.Record{
			Topic: t.topics.Statements,
			Key:   []byte(st.Location().String()),
			Value: value,
		})
	}
	if err := t.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("failed to deploy statements: %w", err)
	}
	t.log.Info("Deployed statements", "count", len(records), "topic", t.topics.Statements)
	return nil
}

// IssueRead sends a read request to the instance at loc. It fails with
// obproto.ErrInstanceUnavailable if no instance-up was seen for loc.
// onComplete is called at most once, through the sink passed to Run.
func (t *Transport) IssueRead(ctx context.Context, loc obproto.Location, target obproto.ReadTarget, onComplete obproto.ReadHandler) error {
	t.mu.Lock()
	_, ok := t.reachable[loc]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", obproto.ErrInstanceUnavailable, loc)
	}

	xid := t.newXID()
	value, err := obproto.Encode(obproto.TypeReadRequest, xid, obproto.ReadRequest{Location: loc, Target: target})
	if err != nil {
		return err
	}

	t.addPending(xid, onComplete)

	rec := &kgo.Record{
		Topic:   t.topics.Requests,
		Key:     []byte(loc.String()),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: HeaderXID, Value: []byte(xid)}},
	}
	if err := t.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		t.takePending(xid)
		return fmt.Errorf("failed to send read request: %w", err)
	}
	t.log.Debug("Read request sent", "xid", xid, "location", loc, "target", target)
	return nil
}

func (t *Transport) addPending(xid string, h obproto.ReadHandler) {
	p := &pendingRead{handler: h}
	if t.requestTimeout > 0 {
		p.timer = time.AfterFunc(t.requestTimeout, func() {
			if _, ok := t.takePending(xid); ok {
				t.log.Warn("Read request timed out", "xid", xid, "timeout", t.requestTimeout)
			}
		})
	}
	t.mu.Lock()
	t.pending[xid] = p
	t.mu.Unlock()
}

func (t *Transport) takePending(xid string) (obproto.ReadHandler, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[xid]
	if !ok {
		return nil, false
	}
	delete(t.pending, xid)
	if p.timer != nil {
		p.timer.Stop()
	}
	return p.handler, true
}

// Pending returns the number of read requests awaiting completion.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Run consumes events and forwards them to sink until ctx is cancelled or the
// client is closed.
func (t *Transport) Run(ctx context.Context, sink Sink) error {
	for {
		fetches := t.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			t.log.Error("fetch error", "error", err, "topic", topic, "partition", partition)
		})
		var err error
		fetches.EachRecord(func(rec *kgo.Record) {
			if err != nil {
				return
			}
			err = t.HandleRecord(ctx, rec, sink)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// HandleRecord decodes one event record and forwards it to sink. Malformed
// records and completions of unknown requests are logged and skipped; only a
// failure to publish is returned.
func (t *Transport) HandleRecord(ctx context.Context, rec *kgo.Record, sink Sink) error {
	xid, payload, err := obproto.Decode(rec.Value)
	if err != nil {
		t.log.Warn("Skipping malformed event", "error", err, "offset", rec.Offset, "partition", rec.Partition)
		return nil
	}
	if xid == "" {
		xid = headerValue(rec, HeaderXID)
	}

	switch m := payload.(type) {
	case obproto.InstanceUp:
		t.mu.Lock()
		t.reachable[m.Instance] = struct{}{}
		t.mu.Unlock()
		return sink.PublishInstanceUp(ctx, m)
	case obproto.Alert:
		return sink.PublishAlert(ctx, m)
	case obproto.ReadResponse:
		return t.complete(ctx, xid, obproto.ReadResult{Response: &m}, sink)
	case obproto.Error:
		return t.complete(ctx, xid, obproto.ReadResult{Err: &m}, sink)
	default:
		t.log.Debug("Ignoring event", "type", fmt.Sprintf("%T", payload))
		return nil
	}
}

func (t *Transport) complete(ctx context.Context, xid string, result obproto.ReadResult, sink Sink) error {
	handler, ok := t.takePending(xid)
	if !ok {
		t.log.Warn("Dropping completion of unknown request", "xid", xid)
		return nil
	}
	return sink.PublishRead(ctx, result, handler)
}

func headerValue(rec *kgo.Record, key string) string {
	for _, h := range rec.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Close stops pending request timers and closes the client.
func (t *Transport) Close() {
	t.mu.Lock()
	for xid, p := range t.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(t.pending, xid)
	}
	t.mu.Unlock()
	if t.client != nil {
		t.client.Close()
	}
}
