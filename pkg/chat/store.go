package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Observer receives a Snapshot after each state change. Observers run on the
// goroutine that caused the change and must not call back into the Store.
type Observer func(Snapshot)

// Store is the message store and status tracker of one chat session.
//
// Only one request can be in flight: Submit is refused unless the status is ready
// or error. The mutex guards memory shared with the transport goroutine; it is the
// status gate that keeps requests from overlapping.
type Store struct {
	transport Transport
	newID     func() string
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	messages     []Message
	status       Status
	lastErr      error
	assistantIdx int
	requestSeq   uint64
	version      uint64
	closed       bool
	observers    []Observer

	notifyMu     sync.Mutex
	lastNotified uint64
}

type StoreOption func(*Store)

// WithIDGenerator replaces the uuid based message id generator.
func WithIDGenerator(f func() string) StoreOption {
	return func(s *Store) {
		if f != nil {
			s.newID = f
		}
	}
}

func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

func WithObserver(o Observer) StoreOption {
	return func(s *Store) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// NewStore creates an empty, ready session. Requests run under a child of ctx that
// is cancelled by Close.
func NewStore(ctx context.Context, t Transport, opts ...StoreOption) *Store {
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithCancel(ctx)
	s := &Store{
		transport:    t,
		newID:        uuid.NewString,
		logger:       log.With().Str("component", "chat-store").Logger(),
		ctx:          cctx,
		cancel:       cancel,
		status:       StatusReady,
		assistantIdx: -1,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Observe registers an observer for subsequent state changes.
func (s *Store) Observe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Status returns the current status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Submit appends a user message and starts a request carrying the whole
// conversation. It returns ErrEmptyInput for blank text, ErrNotReady while a request
// is in flight and ErrClosed after Close; in those cases nothing changes.
func (s *Store) Submit(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.status.AcceptsSubmit() {
		s.mu.Unlock()
		return ErrNotReady
	}
	if s.transport == nil {
		s.mu.Unlock()
		return errors.New("chat store has no transport")
	}
	s.messages = append(s.messages, NewTextMessage(s.newID(), RoleUser, text))
	s.status = StatusSubmitted
	s.lastErr = nil
	s.assistantIdx = -1
	s.requestSeq++
	req := s.requestSeq
	outbound := CloneMessages(s.messages)
	snap, observers := s.changedLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Debug().Uint64("request", req).Int("messages", len(outbound)).Msg("submitting conversation")
	s.notify(snap, observers)
	go s.run(req, outbound)
	return nil
}

// Close ends the session: the in-flight request, if any, is cancelled and waited for.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Store) run(req uint64, msgs []Message) {
	defer s.wg.Done()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("transport panic: %v", r)
			}
		}()
		return s.transport.SendMessages(s.ctx, msgs, func(delta string) {
			s.applyFragment(req, delta)
		})
	}()
	if err != nil {
		s.fail(req, err)
		return
	}
	s.complete(req)
}

func (s *Store) applyFragment(req uint64, delta string) {
	if delta == "" {
		return
	}
	s.mu.Lock()
	if !s.currentLocked(req) {
		s.mu.Unlock()
		return
	}
	switch s.status {
	case StatusSubmitted:
		s.messages = append(s.messages, NewTextMessage(s.newID(), RoleAssistant, delta))
		s.assistantIdx = len(s.messages) - 1
		s.status = StatusStreaming
	case StatusStreaming:
		s.extendAssistantLocked(delta)
	case StatusReady, StatusError:
		st := s.status
		s.mu.Unlock()
		s.logger.Debug().Str("status", st.String()).Msg("ignoring fragment outside of a request")
		return
	}
	snap, observers := s.changedLocked()
	s.mu.Unlock()
	s.notify(snap, observers)
}

func (s *Store) extendAssistantLocked(delta string) {
	msg := &s.messages[s.assistantIdx]
	for i := len(msg.Parts) - 1; i >= 0; i-- {
		if tp, ok := msg.Parts[i].(*TextPart); ok {
			tp.Text += delta
			return
		}
	}
	msg.Parts = append(msg.Parts, &TextPart{Text: delta})
}

func (s *Store) complete(req uint64) {
	s.mu.Lock()
	if !s.currentLocked(req) || !s.status.Busy() {
		s.mu.Unlock()
		return
	}
	s.status = StatusReady
	s.assistantIdx = -1
	snap, observers := s.changedLocked()
	s.mu.Unlock()
	s.logger.Debug().Uint64("request", req).Msg("request completed")
	s.notify(snap, observers)
}

func (s *Store) fail(req uint64, err error) {
	s.mu.Lock()
	if !s.currentLocked(req) || !s.status.Busy() {
		s.mu.Unlock()
		return
	}
	tf := AsTransportFailure(err)
	s.status = StatusError
	s.lastErr = tf
	s.assistantIdx = -1
	snap, observers := s.changedLocked()
	s.mu.Unlock()
	s.logger.Warn().Err(tf).Uint64("request", req).Msg("request failed")
	s.notify(snap, observers)
}

// LastError returns the failure that moved the store into the error state.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) currentLocked(req uint64) bool {
	return !s.closed && req == s.requestSeq
}

func (s *Store) changedLocked() (Snapshot, []Observer) {
	s.version++
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	return s.snapshotLocked(), observers
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:  s.version,
		Messages: CloneMessages(s.messages),
		Status:   s.status,
	}
	if snap.Messages == nil {
		snap.Messages = []Message{}
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// notify delivers snapshots in version order; a snapshot older than one already
// delivered is dropped since the newer one contains it.
func (s *Store) notify(snap Snapshot, observers []Observer) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if snap.Version <= s.lastNotified {
		return
	}
	s.lastNotified = snap.Version
	for _, o := range observers {
		o(snap)
	}
}
