package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/pkg/errors"

	"github.com/trezcool/markalloc/core"
	"github.com/trezcool/markalloc/core/allocation"
)

// State of a validation Session.
type State int

const (
	// StateIdle: no draft to validate (no candidate, or the session is closed).
	StateIdle State = iota
	// StateScheduled: waiting for the input to settle.
	StateScheduled
	// StateInFlight: a validation request for the live draft is pending.
	StateInFlight
	// StateApplied: the live draft has a validation result.
	StateApplied
	// StateFailed: validating the live draft failed; the outcome is unknown.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateInFlight:
		return "in-flight"
	case StateApplied:
		return "applied"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Draft is the uncommitted content input being edited.
type Draft struct {
	SemesterID       string
	CandidateMarks   int
	ContentType      allocation.ContentType
	ExcludeContentID string
}

func (d Draft) Request() allocation.ValidationRequest {
	return allocation.ValidationRequest{
		SemesterID:       d.SemesterID,
		CandidateMarks:   d.CandidateMarks,
		ContentType:      d.ContentType,
		ExcludeContentID: d.ExcludeContentID,
	}
}

// Outcome is sent to subscribers when a validation response is accepted. Exactly one of Result and Err is set.
type Outcome struct {
	Draft  Draft
	Seq    uint64
	Result *allocation.ValidationResult
	Err    error
}

type Snapshot struct {
	State    State
	Seq      uint64
	Draft    Draft
	Deadline time.Time // when the scheduled request fires
	// Result is the accepted result for Draft, if any.
	Result *allocation.ValidationResult
	Err    error
}

type (
	call struct {
		draft  Draft
		cancel context.CancelFunc
		timer  clock.Timer

		// guarded by Session.mu
		seq        uint64
		superseded bool

		mu      sync.Mutex
		expired bool
	}

	accepted struct {
		draft  Draft
		result allocation.ValidationResult
	}
)

func (c *call) expire() {
	c.mu.Lock()
	c.expired = true
	c.mu.Unlock()
	c.cancel()
}

func (c *call) hasExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Session validates a draft mark value while it is being edited.
//
// Every change restarts a quiet window; when it expires one request is sent with the draft as it
// is then. A response is accepted only if the draft still matches the one it was built from,
// so responses to superseded drafts are dropped whatever order they arrive in.
// Issuing a request cancels the previous one, and each request times out after ValidateTimeout.
type Session struct {
	remote allocation.MarkValidator
	opts   Options

	mu        sync.Mutex
	closed    bool
	draft     Draft
	seq       uint64
	state     State
	deadline  time.Time
	timer     clock.Timer
	inflight  *call
	last      *accepted
	err       error
	listeners map[int]func(Outcome)
	nextID    int

	notifyMu sync.Mutex
	notified uint64 // guarded by notifyMu
}

func NewSession(remote allocation.MarkValidator, opts Options) *Session {
	return &Session{
		remote:    remote,
		opts:      opts.withDefaults(),
		listeners: make(map[int]func(Outcome)),
	}
}

// Update sets the live draft. Unchanged input is ignored; an empty semester ID selects the current semester.
// A draft without positive candidate marks cancels any scheduled request.
func (s *Session) Update(d Draft) {
	d.SemesterID = allocation.SelectSemester(d.SemesterID).String()
	d.ExcludeContentID = core.CleanString(d.ExcludeContentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || d == s.draft {
		return
	}
	s.draft = d
	s.seq++
	s.err = nil
	s.stopTimer()

	if d.CandidateMarks <= 0 {
		s.state = StateIdle
		return
	}
	if s.last != nil && s.last.draft == d {
		s.state = StateApplied
		s.opts.Metrics.validation(validationSuppressed)
		return
	}
	s.schedule(s.opts.DebounceWindow)
}

// SetCandidateMarks updates the candidate marks of the live draft.
func (s *Session) SetCandidateMarks(marks int) {
	d := s.Draft()
	d.CandidateMarks = marks
	s.Update(d)
}

// Retry validates the live draft again after a failure. It reports whether a request was scheduled.
func (s *Session) Retry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != StateFailed {
		return false
	}
	s.seq++
	s.err = nil
	s.schedule(0)
	return true
}

// must be called with s.mu held
func (s *Session) schedule(window time.Duration) {
	seq := s.seq
	s.state = StateScheduled
	s.deadline = s.opts.Clock.Now().Add(window)
	if window <= 0 {
		go s.fire(seq)
		return
	}
	s.timer = s.opts.Clock.AfterFunc(window, func() { go s.fire(seq) })
}

// must be called with s.mu held
func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.deadline = time.Time{}
}

func (s *Session) fire(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.seq || s.state != StateScheduled {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.deadline = time.Time{}
	d := s.draft

	if s.last != nil && s.last.draft == d {
		s.state = StateApplied
		s.mu.Unlock()
		s.opts.Metrics.validation(validationSuppressed)
		return
	}
	if prev := s.inflight; prev != nil {
		if prev.draft == d {
			// already asking for this very draft
			prev.seq = seq
			s.state = StateInFlight
			s.mu.Unlock()
			return
		}
		prev.superseded = true
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &call{seq: seq, draft: d, cancel: cancel}
	c.timer = s.opts.Clock.AfterFunc(s.opts.ValidateTimeout, c.expire)
	s.inflight = c
	s.state = StateInFlight
	s.mu.Unlock()

	s.opts.Metrics.validation(validationIssued)
	s.opts.Logger.Debug("validating draft marks", core.Fields{
		"seq":             seq,
		"semester_id":     d.SemesterID,
		"candidate_marks": d.CandidateMarks,
	})
	s.resolve(ctx, c)
}

// invoke calls the remote and gives up as soon as ctx is done, even if the remote doesn't.
func (s *Session) invoke(ctx context.Context, req allocation.ValidationRequest) (allocation.ValidationResult, error) {
	type reply struct {
		res allocation.ValidationResult
		err error
	}
	replies := make(chan reply, 1)
	go func() {
		res, err := s.remote.ValidateMarkAllocation(ctx, req)
		replies <- reply{res, err}
	}()

	select {
	case r := <-replies:
		return r.res, r.err
	case <-ctx.Done():
		return allocation.ValidationResult{}, ctx.Err()
	}
}

func (s *Session) resolve(ctx context.Context, c *call) {
	res, err := s.invoke(ctx, c.draft.Request())
	c.timer.Stop()
	if err != nil && c.hasExpired() {
		err = errors.Wrapf(allocation.ErrValidationTimeout, "no response within %s", s.opts.ValidateTimeout)
	}
	c.cancel()

	s.mu.Lock()
	if s.inflight == c {
		s.inflight = nil
	}
	fields := core.Fields{"seq": c.seq, "semester_id": c.draft.SemesterID, "candidate_marks": c.draft.CandidateMarks}

	if s.closed || c.superseded || c.draft != s.draft {
		s.mu.Unlock()
		s.opts.Logger.Debug("discarding stale validation response", fields)
		s.opts.Metrics.validation(validationStale)
		return
	}

	s.stopTimer()
	out := Outcome{Draft: c.draft, Seq: c.seq}
	if err != nil {
		terr := allocation.NewTransportError(allocation.OpValidateMarks, allocation.SelectSemester(c.draft.SemesterID), err)
		s.err = terr
		s.state = StateFailed
		out.Err = terr
	} else {
		s.last = &accepted{draft: c.draft, result: res}
		s.err = nil
		s.state = StateApplied
		out.Result = &res
	}
	listeners := make([]func(Outcome), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if out.Err != nil {
		s.opts.Logger.Error("validating draft marks failed", out.Err, fields)
		if errors.Is(out.Err, allocation.ErrValidationTimeout) {
			s.opts.Metrics.validation(validationTimedOut)
		} else {
			s.opts.Metrics.validation(validationFailed)
		}
	} else {
		s.opts.Metrics.validation(validationAccepted)
	}
	s.deliver(listeners, out)
}

// deliver calls the listeners with out unless a later outcome was already delivered.
func (s *Session) deliver(listeners []func(Outcome), out Outcome) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if out.Seq <= s.notified {
		return false
	}
	s.notified = out.Seq
	for _, fn := range listeners {
		fn(out)
	}
	return true
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:    s.state,
		Seq:      s.seq,
		Draft:    s.draft,
		Deadline: s.deadline,
		Err:      s.err,
	}
	if s.last != nil && s.last.draft == s.draft && s.state == StateApplied {
		res := s.last.result
		snap.Result = &res
	}
	return snap
}

// Subscribe registers fn to be called with every accepted outcome. fn must not block.
// Outcomes are delivered one at a time in Seq order; one overtaken by a later outcome is dropped.
// The returned func unsubscribes.
func (s *Session) Subscribe(fn func(Outcome)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close cancels any scheduled or in-flight request; later responses are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopTimer()
	if c := s.inflight; c != nil {
		c.superseded = true
		c.cancel()
		s.inflight = nil
	}
	s.state = StateIdle
	s.listeners = make(map[int]func(Outcome))
}
