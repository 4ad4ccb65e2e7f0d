package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-starter/internal/config"
	"github.com/zhouzirui/chat-starter/internal/metrics"
	"github.com/zhouzirui/chat-starter/internal/model/chat"
	"github.com/zhouzirui/chat-starter/internal/service/transport"
)

var (
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyStarted = errors.New("session already started")
	ErrSessionStopped = errors.New("session stopped")
)

// Transport is the message-oriented connection a Session drives.
type Transport interface {
	Open(ctx context.Context, url string, cb transport.Callbacks) error
	Send(text string) error
	Close() error
}

// EventKind tells subscribers what changed.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventEntryAppended
)

// Event is published to subscribers after every state change or log append.
type Event struct {
	Kind  EventKind
	State chat.ConnectionState
	Entry chat.LogEntry
}

// Option customises a Session.
type Option func(*Session)

// WithIdentity replaces the identity generator.
func WithIdentity(fn IdentityFunc) Option {
	return func(s *Session) {
		if fn != nil {
			s.identity = fn
		}
	}
}

// WithClock replaces the clock used to stamp log entries.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics counts sent and received messages on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

type subscriber struct {
	id int
	fn func(Event)
}

// Session owns one transport connection, its connection state and the append-only
// transcript. A Session is single-use: Start once, Stop once.
type Session struct {
	transport Transport
	endpoint  config.EndpointConfig
	identity  IdentityFunc
	now       func() time.Time
	metrics   *metrics.Metrics

	mu      sync.Mutex
	cond    *sync.Cond
	id      chat.ClientIdentity
	state   chat.ConnectionState
	entries []chat.LogEntry
	started bool
	stopped bool

	subs    []subscriber
	nextSub int
	pending []Event
}

// NewSession wires a session to tr; nothing is dialed until Start.
func NewSession(tr Transport, endpoint config.EndpointConfig, opts ...Option) *Session {
	s := &Session{
		transport: tr,
		endpoint:  endpoint,
		identity:  RandomIdentity,
		now:       time.Now,
		entries:   make([]chat.LogEntry, 0, 64),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start generates the client identity and opens the transport. A connection that never
// opens is not reported here; the state simply stays Disconnected.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.id = s.identity()
	id := s.id
	s.mu.Unlock()

	go s.dispatch()

	url := s.endpoint.URL(string(id))
	log.Info().Str("client_id", string(id)).Str("url", url).Msg("[chat] connecting")

	err := s.transport.Open(ctx, url, transport.Callbacks{
		OnOpen:    s.handleOpen,
		OnMessage: s.handleMessage,
		OnClose:   s.handleClose,
	})
	if err != nil {
		return errors.Wrap(err, "open transport")
	}
	return nil
}

// Send transmits text and appends the local "you: " echo. Empty text is ignored.
func (s *Session) Send(text string) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	connected := !s.stopped && s.state == chat.Connected
	s.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	if err := s.transport.Send(text); err != nil {
		return errors.Wrap(err, "send message")
	}
	s.metrics.IncSent()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.appendLocked(chat.Echo(text, s.now()))
	return nil
}

// Stop closes the transport and detaches the callbacks. It is safe to call more than once.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	if s.state == chat.Connected {
		s.setStateLocked(chat.Disconnected)
	}
	s.stopped = true
	started, id := s.started, s.id
	s.cond.Broadcast()
	s.mu.Unlock()

	if !started {
		return nil
	}
	log.Info().Str("client_id", string(id)).Msg("[chat] session stopped")
	return errors.Wrap(s.transport.Close(), "close transport")
}

// State reports the current connection state.
func (s *Session) State() chat.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the client identity, empty before Start.
func (s *Session) Identity() chat.ClientIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Entries returns a copy of the transcript in display order.
func (s *Session) Entries() []chat.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.LogEntry(nil), s.entries...)
}

// Subscribe registers fn for future events. Events arrive in the order the session
// applied them, from a single goroutine; fn must not block for long.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) handleOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	log.Info().Str("client_id", string(s.id)).Msg("[chat] connected")
	s.setStateLocked(chat.Connected)
}

func (s *Session) handleMessage(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.metrics.IncReceived()
	s.appendLocked(chat.LogEntry{Text: payload, Origin: chat.OriginRemote, CreatedAt: s.now()})
}

func (s *Session) handleClose(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("client_id", string(s.id)).Msg("[chat] disconnected")
	} else {
		log.Info().Str("client_id", string(s.id)).Msg("[chat] disconnected")
	}
	if s.state != chat.Disconnected {
		s.setStateLocked(chat.Disconnected)
	}
}

func (s *Session) setStateLocked(state chat.ConnectionState) {
	s.state = state
	s.publishLocked(Event{Kind: EventStateChanged, State: state})
}

func (s *Session) appendLocked(entry chat.LogEntry) {
	s.entries = append(s.entries, entry)
	s.publishLocked(Event{Kind: EventEntryAppended, State: s.state, Entry: entry})
}

func (s *Session) publishLocked(ev Event) {
	s.pending = append(s.pending, ev)
	s.cond.Signal()
}

// dispatch delivers pending events until the session is stopped and drained.
func (s *Session) dispatch() {
	s.mu.Lock()
	for {
		for len(s.pending) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.pending
		s.pending = nil
		subs := append([]subscriber(nil), s.subs...)
		s.mu.Unlock()

		for _, ev := range batch {
			for _, sub := range subs {
				sub.fn(ev)
			}
		}

		s.mu.Lock()
	}
}
