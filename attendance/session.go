// Package attendance turns a stream of recognized identities into at most one
// attendance record per identity per session.
package attendance

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camden-git/faceattend/models"
)

// ErrSessionNotStarted is returned by Observe outside a Start/Stop window.
var ErrSessionNotStarted = errors.New("attendance session not started")

// Outcome describes what Observe did with an identity.
type Outcome int

const (
	// OutcomeRecorded means a new record was persisted.
	OutcomeRecorded Outcome = iota
	// OutcomeDuplicate means the identity was already seen this session.
	OutcomeDuplicate
	// OutcomeWriteFailed means the record could not be persisted.
	OutcomeWriteFailed
	// OutcomeInactive means no session was running.
	OutcomeInactive
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeWriteFailed:
		return "write_failed"
	case OutcomeInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Store is the persistence a session appends to.
type Store interface {
	Append(record models.AttendanceRecord) error
}

// Options tune a Session. The zero value keeps the historical behaviour: an
// identity whose write failed stays suppressed for the rest of the session.
type Options struct {
	// RetryFailedWrites forgets an identity when its record could not be
	// persisted, so the next observation tries again.
	RetryFailedWrites bool
	// Clock defaults to time.Now.
	Clock func() time.Time
	// OnRecorded is called after each successful append, outside the
	// session lock.
	OnRecorded func(models.AttendanceRecord)
}

// Status is a point-in-time view of a session.
type Status struct {
	ID            string    `json:"id,omitempty"`
	Active        bool      `json:"active"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	Seen          int       `json:"seen"`
	Recorded      int       `json:"recorded"`
	WriteFailures int       `json:"write_failures"`
}

// Session holds the per-session dedup set. Observe has a single writer (the
// capture loop); the mutex only makes Status safe to read from elsewhere.
type Session struct {
	store  Store
	logger *zap.Logger
	opts   Options

	mu        sync.Mutex
	id        uuid.UUID
	active    bool
	startedAt time.Time
	seen      map[int]struct{}
	last      time.Time
	recorded  int
	failures  int
}

func NewSession(store Store, logger *zap.Logger, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Session{
		store:  store,
		logger: logger.Named("attendance"),
		opts:   opts,
	}
}

// Start begins a new session with an empty seen set and returns its id.
func (s *Session) Start() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = uuid.New()
	s.active = true
	s.startedAt = s.opts.Clock()
	s.seen = make(map[int]struct{})
	s.last = time.Time{}
	s.recorded = 0
	s.failures = 0

	s.logger.Info("attendance session started", zap.String("session_id", s.id.String()))
	return s.id.String()
}

// Stop ends the session and discards the seen set. Records were already
// written by Observe, so nothing is flushed.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.logger.Info("attendance session stopped",
		zap.String("session_id", s.id.String()),
		zap.Int("recorded", s.recorded),
		zap.Int("write_failures", s.failures))
	s.active = false
	s.seen = nil
}

// Observe records identity the first time it is seen in this session.
// Write failures are returned with OutcomeWriteFailed and are not fatal.
func (s *Session) Observe(identity models.Identity) (Outcome, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return OutcomeInactive, ErrSessionNotStarted
	}
	if _, ok := s.seen[identity.ID]; ok {
		s.mu.Unlock()
		return OutcomeDuplicate, nil
	}
	s.seen[identity.ID] = struct{}{}

	// records within a session are strictly ordered even when the clock
	// does not advance between two observations. A bump past midnight
	// files the record under the new day.
	ts := s.opts.Clock().Truncate(time.Millisecond)
	if !ts.After(s.last) {
		ts = s.last.Add(time.Millisecond)
	}
	s.last = ts
	record := models.NewAttendanceRecord(ts, identity)

	if err := s.store.Append(record); err != nil {
		s.failures++
		if s.opts.RetryFailedWrites {
			delete(s.seen, identity.ID)
		}
		sessionID := s.id.String()
		s.mu.Unlock()

		s.logger.Warn("failed to persist attendance record",
			zap.String("session_id", sessionID),
			zap.Int("identity_id", identity.ID),
			zap.Bool("will_retry", s.opts.RetryFailedWrites),
			zap.Error(err))
		return OutcomeWriteFailed, fmt.Errorf("failed to record attendance for %s: %w", identity, err)
	}
	s.recorded++
	s.mu.Unlock()

	s.logger.Info("attendance recorded",
		zap.Int("identity_id", identity.ID),
		zap.String("name", identity.DisplayName),
		zap.String("date", record.Date()),
		zap.String("time", record.TimeOfDay()))
	if s.opts.OnRecorded != nil {
		s.opts.OnRecorded(record)
	}
	return OutcomeRecorded, nil
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Active:        s.active,
		Seen:          len(s.seen),
		Recorded:      s.recorded,
		WriteFailures: s.failures,
	}
	if s.id != uuid.Nil {
		st.ID = s.id.String()
		st.StartedAt = s.startedAt
	}
	return st
}
