package analysis

import (
	"fmt"
	"strings"
	"time"
)

// Phase is the lifecycle state of a streaming analysis session. Phases only
// move forward; Settled, Failed and Cancelled are absorbing.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseGating
	PhaseRevealing
	PhaseSettled
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseGating:
		return "gating"
	case PhaseRevealing:
		return "revealing"
	case PhaseSettled:
		return "settled"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// terminal reports whether no further transitions are possible.
func (p Phase) terminal() bool {
	return p == PhaseSettled || p == PhaseFailed || p == PhaseCancelled
}

// Request is the immutable input to one analysis run.
type Request struct {
	// BirthDate is required, formatted yyyy-MM-dd.
	BirthDate string `json:"birthDate"`
	// BirthTime is optional, formatted HH:mm. Omission is valid and merely
	// reduces analysis precision.
	BirthTime string `json:"birthTime,omitempty"`
	// Gender is one of male, female, other, or empty.
	Gender string `json:"gender,omitempty"`
	// Language is the locale tag for the generated report.
	Language string `json:"language"`
	// Key selects the analysis prompt/template to run.
	Key string `json:"key"`
}

// Validate checks the request's required fields.
func (r Request) Validate() error {
	if r.BirthDate == "" {
		return fmt.Errorf("birth date is required")
	}
	if _, err := time.Parse("2006-01-02", r.BirthDate); err != nil {
		return fmt.Errorf("invalid birth date %q: %w", r.BirthDate, err)
	}
	if r.BirthTime != "" {
		if _, err := time.Parse("15:04", r.BirthTime); err != nil {
			return fmt.Errorf("invalid birth time %q: %w", r.BirthTime, err)
		}
	}
	if r.Key == "" {
		return fmt.Errorf("analysis key is required")
	}
	return nil
}

// session holds the transient state of one in-flight request. All fields are
// guarded by the orchestrator's mutex; timers and stream callbacks funnel
// through orchestrator methods that take it.
type session struct {
	request Request
	phase   Phase

	// rawBuffer accumulates everything the stream has delivered; it only
	// grows until a terminal phase.
	rawBuffer strings.Builder
	// revealed is the user-visible content; revealedLen is the cursor into
	// rawBuffer it corresponds to. revealedLen <= rawBuffer.Len() always.
	revealed    string
	revealedLen int

	serverAssignedID string

	minDelayDone bool
	chunkArrived bool
	streamDone   bool

	cancelStream func()
	minTimer     *time.Timer
	hardTimer    *time.Timer
	ticker       *time.Ticker
	tickerStop   chan struct{}
}

// Snapshot is a point-in-time view of a session, safe to retain.
type Snapshot struct {
	Phase            Phase
	Revealed         string
	BufferLen        int
	ServerAssignedID string
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		Phase:            s.phase,
		Revealed:         s.revealed,
		BufferLen:        s.rawBuffer.Len(),
		ServerAssignedID: s.serverAssignedID,
	}
}

// teardown cancels the stream handle and stops every timer. Safe to call
// repeatedly and in any state.
func (s *session) teardown() {
	if s.cancelStream != nil {
		s.cancelStream()
		s.cancelStream = nil
	}
	if s.minTimer != nil {
		s.minTimer.Stop()
		s.minTimer = nil
	}
	if s.hardTimer != nil {
		s.hardTimer.Stop()
		s.hardTimer = nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.tickerStop)
		s.ticker = nil
	}
}
