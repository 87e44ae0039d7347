// Package analysis drives one streaming analysis request end to end:
// request issuance, minimum-duration gating, paced content reveal, hard
// timeout enforcement and final persistence into the report cache.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/patternhq/pattern-engine/internal/events"
	"github.com/patternhq/pattern-engine/internal/markdown"
	"github.com/patternhq/pattern-engine/internal/storage"
	"github.com/patternhq/pattern-engine/internal/stream"
)

const analyzePath = "/api/app/analyze"

// snippetLength is the size of the save-time report summary.
const snippetLength = 100

// Timing defaults. The minimum reveal delay keeps the decoding UI visible
// even when the answer arrives instantly; the hard timeout abandons sessions
// that produce no content at all.
const (
	DefaultMinRevealDelay = 8 * time.Second
	DefaultHardTimeout    = 30 * time.Second
	DefaultRevealInterval = 2 * time.Second
)

// Event types published on the session broker.
const (
	EventPhaseChange events.EventType = "phase_change"
	EventReveal      events.EventType = "reveal"
	EventSettled     events.EventType = "settled"
	EventFailed      events.EventType = "failed"
)

// SessionEvent is the payload carried by every session event.
type SessionEvent struct {
	Phase    Phase
	Revealed string
	Report   *storage.Report
	Err      error
}

// Options tune the orchestrator's timing. Zero values take the defaults;
// tests inject millisecond-scale gates.
type Options struct {
	MinRevealDelay time.Duration
	HardTimeout    time.Duration
	RevealInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinRevealDelay <= 0 {
		o.MinRevealDelay = DefaultMinRevealDelay
	}
	if o.HardTimeout <= 0 {
		o.HardTimeout = DefaultHardTimeout
	}
	if o.RevealInterval <= 0 {
		o.RevealInterval = DefaultRevealInterval
	}
	return o
}

// Orchestrator owns the streaming analysis state machine. At most one
// session is live; starting a new one tears down its predecessor first.
type Orchestrator struct {
	client   *stream.Client
	reports  storage.ReportStore
	profiles storage.ProfileStore
	baseURL  string
	token    string
	opts     Options
	broker   *events.Broker[SessionEvent]
	logger   *log.Logger

	mu      sync.Mutex
	current *session
}

// NewOrchestrator creates an orchestrator. profiles may be nil, in which
// case no profile is auto-derived from completed analyses.
func NewOrchestrator(client *stream.Client, reports storage.ReportStore, profiles storage.ProfileStore, baseURL string, opts Options) *Orchestrator {
	return &Orchestrator{
		client:   client,
		reports:  reports,
		profiles: profiles,
		baseURL:  baseURL,
		opts:     opts.withDefaults(),
		broker:   events.NewBroker[SessionEvent](),
		logger:   log.WithPrefix("analysis"),
	}
}

// SetToken sets the bearer token attached to analysis requests. An empty
// token is valid: anonymous analyses are permitted, and their reports are
// persisted as pending records subject to the retention window.
func (o *Orchestrator) SetToken(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.token = token
}

// Events exposes the session event broker.
func (o *Orchestrator) Events() *events.Broker[SessionEvent] {
	return o.broker
}

// Snapshot returns the current session state, or a zero Snapshot with
// PhaseIdle when no session has run.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Snapshot{Phase: PhaseIdle}
	}
	return o.current.snapshot()
}

// Start begins a new analysis session. Any in-flight predecessor is
// cancelled, its timers cleared, before the new session arms anything.
func (o *Orchestrator) Start(request Request) error {
	if err := request.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// Starting a new session always wins over a stale one.
	if prev := o.current; prev != nil && !prev.phase.terminal() {
		prev.teardown()
		prev.phase = PhaseCancelled
		o.logger.Debug("cancelled previous session")
	}

	s := &session{request: request, phase: PhaseGating}
	o.current = s
	o.publish(EventPhaseChange, SessionEvent{Phase: PhaseGating})

	headers := map[string]string{"Content-Type": "application/json"}
	if o.token != "" {
		headers["Authorization"] = "Bearer " + o.token
	}

	s.cancelStream = o.client.Do(stream.Request{
		URL:     o.baseURL + analyzePath,
		Method:  http.MethodPost,
		Headers: headers,
		Body:    bytes.NewReader(payload),
	}, stream.Callbacks{
		OnChunk:    func(chunk string) { o.onChunk(s, chunk) },
		OnLogID:    func(id string) { o.onLogID(s, id) },
		OnComplete: func() { o.onComplete(s) },
		OnError:    func(err error) { o.onError(s, err) },
	})

	s.minTimer = time.AfterFunc(o.opts.MinRevealDelay, func() { o.onMinDelay(s) })
	s.hardTimer = time.AfterFunc(o.opts.HardTimeout, func() { o.onHardTimeout(s) })

	o.logger.Info("analysis started", "key", request.Key, "birthDate", request.BirthDate)
	return nil
}

// Cancel aborts the current session, if one is in flight.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.current
	if s == nil || s.phase.terminal() {
		return
	}
	s.teardown()
	s.phase = PhaseCancelled
	o.publish(EventPhaseChange, SessionEvent{Phase: PhaseCancelled})
	o.logger.Info("analysis cancelled")
}

// stale reports whether events for s should be ignored: a newer session has
// replaced it, or it already reached a terminal phase.
func (o *Orchestrator) stale(s *session) bool {
	return o.current != s || s.phase.terminal()
}

func (o *Orchestrator) onChunk(s *session, chunk string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(s) {
		return
	}
	// Chunks accumulate regardless of gating phase; the reveal tick decides
	// when they become visible.
	s.rawBuffer.WriteString(chunk)
	s.chunkArrived = true
	o.maybeBeginReveal(s)
}

func (o *Orchestrator) onLogID(s *session, id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(s) {
		return
	}
	s.serverAssignedID = id
	o.logger.Debug("server assigned report id", "id", id)
}

func (o *Orchestrator) onMinDelay(s *session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(s) {
		return
	}
	s.minDelayDone = true
	o.maybeBeginReveal(s)
}

func (o *Orchestrator) onHardTimeout(s *session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(s) {
		return
	}
	if s.chunkArrived {
		// Content exists; the reveal machinery will finish the session.
		return
	}
	o.fail(s, &HardTimeoutError{Timeout: o.opts.HardTimeout})
}

func (o *Orchestrator) onComplete(s *session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(s) {
		return
	}
	s.streamDone = true
	s.cancelStream = nil
	if s.phase == PhaseRevealing {
		o.revealAndMaybeSettle(s)
	}
}

func (o *Orchestrator) onError(s *session, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(s) {
		return
	}
	o.fail(s, err)
}

// maybeBeginReveal transitions Gating to Revealing once both gates have
// opened: the minimum delay elapsed and at least one chunk arrived.
// Whichever condition completes second triggers the transition.
func (o *Orchestrator) maybeBeginReveal(s *session) {
	if s.phase != PhaseGating || !s.minDelayDone || !s.chunkArrived {
		return
	}

	s.phase = PhaseRevealing
	// Content is flowing; the hard timeout no longer applies.
	if s.hardTimer != nil {
		s.hardTimer.Stop()
		s.hardTimer = nil
	}

	o.publish(EventPhaseChange, SessionEvent{Phase: PhaseRevealing})
	o.revealAndMaybeSettle(s)
	if s.phase != PhaseRevealing {
		// The first reveal already settled the session.
		return
	}

	s.ticker = time.NewTicker(o.opts.RevealInterval)
	s.tickerStop = make(chan struct{})
	go func(ticker *time.Ticker, stop chan struct{}) {
		for {
			select {
			case <-ticker.C:
				o.onRevealTick(s)
			case <-stop:
				return
			}
		}
	}(s.ticker, s.tickerStop)

	o.logger.Info("reveal started", "buffered", s.rawBuffer.Len())
}

func (o *Orchestrator) onRevealTick(s *session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale(s) {
		return
	}
	o.revealAndMaybeSettle(s)
}

// revealAndMaybeSettle snaps the visible content to the full buffer and, if
// the stream has finished and the reveal has caught up, settles the session.
func (o *Orchestrator) revealAndMaybeSettle(s *session) {
	full := s.rawBuffer.String()
	if len(full) > s.revealedLen {
		s.revealed = full
		s.revealedLen = len(full)
		o.publish(EventReveal, SessionEvent{Phase: s.phase, Revealed: s.revealed})
	}

	if s.streamDone && s.revealedLen == s.rawBuffer.Len() {
		o.settle(s)
	}
}

// settle persists the finished report and closes out the session. Runs at
// most once per session: it is only reachable from PhaseRevealing and flips
// the phase to a terminal state under the orchestrator lock.
func (o *Orchestrator) settle(s *session) {
	s.teardown()
	s.phase = PhaseSettled

	id := s.serverAssignedID
	if id == "" {
		id = uuid.New().String()
	}

	content := s.rawBuffer.String()
	report := &storage.Report{
		ID:        id,
		CreatedAt: time.Now(),
		Content:   content,
		BirthDate: s.request.BirthDate,
		BirthTime: s.request.BirthTime,
		Gender:    s.request.Gender,
		Summary:   markdown.Snippet(content, snippetLength),
	}
	if o.token == "" {
		report.PendingSince = report.CreatedAt
	}

	if err := o.reports.Put(context.Background(), report); err != nil {
		// The user already saw the full content; losing the cache write is
		// logged, not surfaced as a session failure.
		o.logger.Error("failed to persist report", "id", id, "error", err)
	}

	o.deriveProfile(s)

	o.publish(EventPhaseChange, SessionEvent{Phase: PhaseSettled})
	o.publish(EventSettled, SessionEvent{Phase: PhaseSettled, Report: report})
	o.logger.Info("analysis settled", "id", id, "bytes", len(content))
}

// fail moves the session to Failed, clearing timers and the stream handle.
// No partial report is ever persisted.
func (o *Orchestrator) fail(s *session, err error) {
	s.teardown()
	s.phase = PhaseFailed
	o.publish(EventPhaseChange, SessionEvent{Phase: PhaseFailed, Err: err})
	o.publish(EventFailed, SessionEvent{Phase: PhaseFailed, Err: err})
	o.logger.Error("analysis failed", "error", err)
}

// deriveProfile saves the request's parameters as a profile when no saved
// profile matches them yet.
func (o *Orchestrator) deriveProfile(s *session) {
	if o.profiles == nil {
		return
	}

	ctx := context.Background()
	existing, err := o.profiles.List(ctx)
	if err != nil {
		o.logger.Warn("failed to list profiles", "error", err)
		return
	}
	for _, p := range existing {
		if p.BirthDate == s.request.BirthDate &&
			p.BirthTime == s.request.BirthTime &&
			p.Gender == s.request.Gender {
			return
		}
	}

	now := time.Now()
	profile := &storage.Profile{
		ID:        uuid.New().String(),
		BirthDate: s.request.BirthDate,
		BirthTime: s.request.BirthTime,
		Gender:    s.request.Gender,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if o.token == "" {
		profile.PendingSince = now
	}
	if err := o.profiles.Put(ctx, profile); err != nil {
		o.logger.Warn("failed to derive profile", "error", err)
	}
}

func (o *Orchestrator) publish(eventType events.EventType, payload SessionEvent) {
	o.broker.Publish(eventType, payload)
}
