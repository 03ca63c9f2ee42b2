package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Message is one inbound envelope: a raw JSON-RPC payload addressed to a
// session. Messages are created at the transport boundary and consumed
// exactly once by the broker pipeline.
type Message struct {
	SessionID string
	Payload   JSONRPCMessage
}

// Event is one item of a session's outbound stream. On the SSE transport the
// Type maps directly to the SSE event type; on stdio only message events are
// written.
type Event struct {
	Type string
	Data string
}

// Event types produced by Broker.Messages.
const (
	// EventTypeEndpoint carries the URL clients should POST requests to,
	// parameterized by the session id. Emitted once per stream, first.
	EventTypeEndpoint = "endpoint"
	// EventTypeMessage carries a serialized JSON-RPC message: a response
	// published to the session's mailbox, or a keep-alive ping notification.
	EventTypeMessage = "message"
	// EventTypeDone is the final sentinel emitted when the stream closes.
	EventTypeDone = "done"
)

var (
	defaultBrokerPingInterval = 30 * time.Second
	defaultBrokerIdleTimeout  = time.Minute

	defaultIngestCapacity = 100

	errBrokerClosed = errors.New("broker is closed")
)

// pingPayload is the keep-alive notification sent on every active stream.
// It carries no id, so clients never reply to it.
const pingPayload = `{"jsonrpc":"2.0","method":"ping"}`

// BrokerOption represents the options for the Broker.
type BrokerOption func(*Broker)

// Broker owns the ingest queue and the per-session mailbox table, and runs
// the background pipeline that drains ingest, invokes the protocol adapter,
// and publishes results to the right mailbox.
//
// The pipeline is a single worker processing messages strictly serially in
// global FIFO order. This makes the activation-gate check race-free without
// extra locking, at the cost of head-of-line blocking across sessions: a slow
// tool call for one session delays all enqueued messages for every session.
// There is no per-request timeout; a capability handler that never completes
// stalls the whole pipeline.
//
// Instances should be created using NewBroker and shut down using Shutdown
// when no longer needed.
type Broker struct {
	sessions   *SessionStore
	adapter    *ProtocolAdapter
	messageURL string

	logger *slog.Logger
	clock  clockwork.Clock
	tracer trace.Tracer

	pingInterval time.Duration
	idleTimeout  time.Duration

	ingest chan Message

	mu        sync.Mutex
	mailboxes map[string]*mailbox

	stopOnce       sync.Once
	done           chan struct{}
	pipelineClosed chan struct{}
	sweepClosed    chan struct{}
}

// mailbox is a per-session outbound channel: a broadcast queue of protocol
// responses with any number of subscribers. Messages published while no
// subscriber is attached are buffered and handed to the next subscriber in
// publish order. A mailbox with zero subscribers becomes eligible for idle
// eviction once lastAccess is older than the broker's idle timeout.
type mailbox struct {
	mu         sync.Mutex
	backlog    []JSONRPCMessage
	subs       map[int]*mailboxSub
	nextSubID  int
	lastAccess time.Time
}

type mailboxSub struct {
	id     int
	ch     chan JSONRPCMessage
	closed chan struct{}
}

// mailboxSubBuffer bounds how far a stream reader may lag behind the
// pipeline before publishes to it start blocking.
const mailboxSubBuffer = 64

// NewBroker creates a broker wired to the given session store and protocol
// adapter. The messageURL is the base endpoint clients POST requests to; it
// is echoed in each stream's endpoint greeting with the session id appended.
// The broker is immediately operational: the pipeline worker and the idle
// mailbox sweeper start right away and run until Shutdown is called.
func NewBroker(sessions *SessionStore, adapter *ProtocolAdapter, messageURL string, options ...BrokerOption) *Broker {
	b := &Broker{
		sessions:       sessions,
		adapter:        adapter,
		messageURL:     messageURL,
		logger:         slog.Default(),
		clock:          clockwork.NewRealClock(),
		tracer:         otel.Tracer("github.com/jpowersdev/gomcp"),
		pingInterval:   defaultBrokerPingInterval,
		idleTimeout:    defaultBrokerIdleTimeout,
		mailboxes:      make(map[string]*mailbox),
		done:           make(chan struct{}),
		pipelineClosed: make(chan struct{}),
		sweepClosed:    make(chan struct{}),
	}
	for _, opt := range options {
		opt(b)
	}
	if b.ingest == nil {
		b.ingest = make(chan Message, defaultIngestCapacity)
	}

	go b.pipeline()
	go b.sweep()

	return b
}

// WithBrokerLogger sets the logger for the broker.
func WithBrokerLogger(logger *slog.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = logger.With(
			slog.String("package", "gomcp"),
			slog.String("component", "broker"),
		)
	}
}

// WithBrokerClock sets the clock used for keep-alive ticks and idle
// eviction. This is mainly useful in tests.
func WithBrokerClock(clock clockwork.Clock) BrokerOption {
	return func(b *Broker) {
		b.clock = clock
	}
}

// WithPingInterval sets the interval between keep-alive ping notifications
// on each session stream.
func WithPingInterval(interval time.Duration) BrokerOption {
	return func(b *Broker) {
		b.pingInterval = interval
	}
}

// WithIdleTimeout sets how long a mailbox with no stream subscribers is kept
// before being evicted.
func WithIdleTimeout(timeout time.Duration) BrokerOption {
	return func(b *Broker) {
		b.idleTimeout = timeout
	}
}

// WithIngestCapacity sets the capacity of the ingest queue. Offer blocks
// once the queue is full.
func WithIngestCapacity(capacity int) BrokerOption {
	return func(b *Broker) {
		b.ingest = make(chan Message, capacity)
	}
}

// Offer appends a message to the ingest queue. It blocks while the queue is
// full until space frees, the context is cancelled, or the broker shuts
// down; messages are never dropped silently.
func (b *Broker) Offer(ctx context.Context, msg Message) error {
	select {
	case <-b.done:
		return errBrokerClosed
	default:
	}

	select {
	case b.ingest <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return errBrokerClosed
	}
}

// Messages returns the outbound event stream for the given session. The
// stream combines one endpoint greeting event, a periodic keep-alive ping
// notification, and the session's mailbox contents in publish order; no
// ordering is guaranteed between the greeting/ping events and mailbox
// events. The stream terminates with a done event when ctx is cancelled or
// the broker shuts down.
//
// The returned sequence is single-use and must be consumed: it holds a
// mailbox subscription that is released only when iteration ends. Returns an
// error wrapping ErrSessionNotFound if no such session exists.
func (b *Broker) Messages(ctx context.Context, sessionID string) (iter.Seq[Event], error) {
	if _, err := b.sessions.FindByID(sessionID); err != nil {
		return nil, err
	}

	mb := b.mailbox(sessionID)
	sub := mb.subscribe(b.clock.Now())

	return func(yield func(Event) bool) {
		// Release the subscription exactly once, on every exit path, so the
		// mailbox becomes eligible for idle eviction after a disconnect.
		defer mb.unsubscribe(sub, b.clock.Now())

		endpoint := fmt.Sprintf("%s?sessionId=%s", b.messageURL, sessionID)
		if !yield(Event{Type: EventTypeEndpoint, Data: endpoint}) {
			return
		}

		ticker := b.clock.NewTicker(b.pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				yield(Event{Type: EventTypeDone, Data: "finished"})
				return
			case <-b.done:
				yield(Event{Type: EventTypeDone, Data: "finished"})
				return
			case <-ticker.Chan():
				if !yield(Event{Type: EventTypeMessage, Data: pingPayload}) {
					return
				}
			case msg := <-sub.ch:
				data, err := json.Marshal(msg)
				if err != nil {
					b.logger.Error("failed to marshal outbound message",
						slog.String("sessionID", sessionID),
						slog.String("err", err.Error()))
					continue
				}
				if !yield(Event{Type: EventTypeMessage, Data: string(data)}) {
					return
				}
			}
		}
	}, nil
}

// Shutdown stops the pipeline worker and the mailbox sweeper. It blocks
// until both have finished or the context is cancelled. In-flight Offer
// calls fail with a closed-broker error; open Messages streams emit their
// done event and end. Shutdown is idempotent.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.stopOnce.Do(func() {
		close(b.done)
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to stop pipeline: %w", ctx.Err())
	case <-b.pipelineClosed:
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to stop mailbox sweeper: %w", ctx.Err())
	case <-b.sweepClosed:
	}

	return nil
}

func (b *Broker) pipeline() {
	defer close(b.pipelineClosed)

	for {
		select {
		case <-b.done:
			return
		case msg := <-b.ingest:
			b.process(msg)
		}
	}
}

func (b *Broker) process(m Message) {
	ctx, span := b.tracer.Start(context.Background(), "Broker.process", trace.WithAttributes(
		attribute.String("mcp.method", m.Payload.Method),
		attribute.String("mcp.id", string(m.Payload.ID)),
		attribute.String("session.id", m.SessionID),
	))
	defer span.End()

	// Best-effort resolution: an unknown session cannot crash the pipeline.
	sess, err := b.sessions.FindByID(m.SessionID)
	if err != nil {
		b.logger.Error("dropping message for unknown session",
			slog.String("sessionID", m.SessionID),
			slog.String("method", m.Payload.Method))
		return
	}

	// Activation gate: until the handshake completes, only the handshake
	// methods themselves are processed. This prevents a client from invoking
	// privileged operations before sending notifications/initialized.
	if !sessionAllowed(sess, m.Payload.Method) {
		b.logger.Warn("skipping message for pending session",
			slog.String("sessionID", m.SessionID),
			slog.String("method", m.Payload.Method))
		return
	}

	reply := b.handle(ctx, sess, m.Payload)
	if reply == nil {
		return
	}

	b.mailbox(m.SessionID).publish(*reply, b.clock.Now(), b.done)
}

// handle invokes the adapter, converting a panic anywhere below it into a
// synthesized internal-error response so the pipeline worker never dies.
func (b *Broker) handle(ctx context.Context, sess Session, payload JSONRPCMessage) (reply *JSONRPCMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while processing message",
				slog.String("sessionID", sess.ID),
				slog.String("method", payload.Method),
				slog.Any("panic", r))
			if payload.IsNotification() {
				reply = nil
				return
			}
			reply = errorResponse(payload.ID, jsonRPCInternalErrorCode, errMsgInternalError)
		}
	}()

	return b.adapter.Handle(ctx, sess, payload)
}

func sessionAllowed(sess Session, method string) bool {
	return method == MethodInitialize ||
		method == MethodNotificationsInitialized ||
		sess.Active()
}

// mailbox returns the mailbox for the given session id, creating it if
// needed. Mailbox lifetime is independent of the session store entry: an
// evicted mailbox is recreated transparently on the next publish or
// subscription.
func (b *Broker) mailbox(sessionID string) *mailbox {
	b.mu.Lock()
	defer b.mu.Unlock()

	mb, ok := b.mailboxes[sessionID]
	if !ok {
		mb = &mailbox{
			subs:       make(map[int]*mailboxSub),
			lastAccess: b.clock.Now(),
		}
		b.mailboxes[sessionID] = mb
	}
	return mb
}

func (b *Broker) sweep() {
	defer close(b.sweepClosed)

	ticker := b.clock.NewTicker(b.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.Chan():
			b.evictIdle()
		}
	}
}

func (b *Broker) evictIdle() {
	now := b.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, mb := range b.mailboxes {
		if mb.idle(now, b.idleTimeout) {
			delete(b.mailboxes, id)
			b.logger.Debug("evicted idle mailbox", slog.String("sessionID", id))
		}
	}
}

func (mb *mailbox) subscribe(now time.Time) *mailboxSub {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	sub := &mailboxSub{
		id:     mb.nextSubID,
		ch:     make(chan JSONRPCMessage, len(mb.backlog)+mailboxSubBuffer),
		closed: make(chan struct{}),
	}
	mb.nextSubID++

	// The first subscriber drains whatever was published while nobody was
	// listening, preserving publish order.
	for _, msg := range mb.backlog {
		sub.ch <- msg
	}
	mb.backlog = nil

	mb.subs[sub.id] = sub
	mb.lastAccess = now

	return sub
}

func (mb *mailbox) unsubscribe(sub *mailboxSub, now time.Time) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, ok := mb.subs[sub.id]; ok {
		delete(mb.subs, sub.id)
		close(sub.closed)
	}
	mb.lastAccess = now
}

func (mb *mailbox) publish(msg JSONRPCMessage, now time.Time, done <-chan struct{}) {
	mb.mu.Lock()
	mb.lastAccess = now
	if len(mb.subs) == 0 {
		mb.backlog = append(mb.backlog, msg)
		mb.mu.Unlock()
		return
	}
	subs := make([]*mailboxSub, 0, len(mb.subs))
	for _, sub := range mb.subs {
		subs = append(subs, sub)
	}
	mb.mu.Unlock()

	// Sends happen outside the mailbox lock so a slow reader can still
	// unsubscribe; the closed channel unblocks publishes to it.
	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		case <-sub.closed:
		case <-done:
			return
		}
	}
}

func (mb *mailbox) idle(now time.Time, timeout time.Duration) bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.subs) == 0 && now.Sub(mb.lastAccess) >= timeout
}
