package tracker

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/markalloc/core"
	"github.com/trezcool/markalloc/core/allocation"
)

// FetchOutcome tells what became of a fetch.
type FetchOutcome int

const (
	// FetchApplied means the summary replaced the slot's value.
	FetchApplied FetchOutcome = iota + 1
	// FetchSuperseded means a later fetch was issued for the slot before this one resolved: the response was dropped.
	FetchSuperseded
	// FetchFailed means the remote call failed; the slot keeps its last good summary.
	FetchFailed
)

func (o FetchOutcome) String() string {
	switch o {
	case FetchApplied:
		return "applied"
	case FetchSuperseded:
		return "superseded"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is sent to subscribers when a slot is updated or a fetch failure is surfaced.
// Exactly one of Summary and Err is set.
type Event struct {
	Slot    Slot
	Seq     uint64
	Summary *allocation.SemesterAllocationSummary
	Err     error
}

// Coordinator fetches allocation summaries and writes them to a Store.
// Within a slot the most recently issued fetch wins, whatever order the responses arrive in.
type Coordinator struct {
	store  *Store
	remote allocation.SummaryFetcher
	opts   Options

	mu        sync.Mutex
	closed    bool
	issued    map[Slot]uint64
	applied   map[Slot]uint64
	selectors map[Slot]allocation.SemesterSelector
	errs      map[Slot]error
	listeners map[int]func(Event)
	nextID    int

	notifyMu sync.Mutex
	notified map[Slot]uint64 // guarded by notifyMu
}

func NewCoordinator(store *Store, remote allocation.SummaryFetcher, opts Options) *Coordinator {
	return &Coordinator{
		store:     store,
		remote:    remote,
		opts:      opts.withDefaults(),
		issued:    make(map[Slot]uint64),
		applied:   make(map[Slot]uint64),
		selectors: make(map[Slot]allocation.SemesterSelector),
		errs:      make(map[Slot]error),
		listeners: make(map[int]func(Event)),
		notified:  make(map[Slot]uint64),
	}
}

func (c *Coordinator) Store() *Store {
	return c.store
}

// Fetch requests the selected semester's summary for the slot.
// The summary is applied only if no later fetch was issued for the slot meanwhile.
// A failure leaves the slot's summary untouched, is recorded as the slot's last error and returned.
// Superseded responses, successful or not, are dropped without error.
func (c *Coordinator) Fetch(ctx context.Context, slot Slot, sel allocation.SemesterSelector) (FetchOutcome, error) {
	if sel == "" {
		sel = allocation.CurrentSemester
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return FetchSuperseded, nil
	}
	c.issued[slot]++
	seq := c.issued[slot]
	c.selectors[slot] = sel
	c.mu.Unlock()
	c.opts.Metrics.fetch(fetchIssued)

	ctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()
	summary, err := c.remote.FetchSemesterAllocation(ctx, sel)

	fields := core.Fields{"slot": slot, "seq": seq, "semester": sel.String()}

	c.mu.Lock()
	if c.closed || seq != c.issued[slot] {
		latest := c.issued[slot]
		c.mu.Unlock()
		fields["latest_seq"] = latest
		c.opts.Logger.Debug("discarding stale allocation summary", fields)
		c.opts.Metrics.fetch(fetchStale)
		return FetchSuperseded, nil
	}

	if err != nil {
		terr := allocation.NewTransportError(allocation.OpFetchSummary, sel, err)
		c.errs[slot] = terr
		listeners := c.snapshotListeners()
		c.mu.Unlock()

		c.opts.Logger.Error("fetching allocation summary failed", terr, fields)
		c.opts.Metrics.fetch(fetchFailed)
		c.deliver(listeners, Event{Slot: slot, Seq: seq, Err: terr})
		return FetchFailed, terr
	}

	c.store.set(slot, summary)
	c.applied[slot] = seq
	delete(c.errs, slot)
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	c.opts.Metrics.fetch(fetchApplied)
	if verr := summary.CheckInvariant(); verr != nil {
		c.opts.Logger.Warn("allocation summary totals disagree with its contents", verr, fields)
		c.opts.Metrics.violation()
	}
	c.deliver(listeners, Event{Slot: slot, Seq: seq, Summary: &summary})
	return FetchApplied, nil
}

// Refresh fetches the slot again with the selector of its last fetch.
func (c *Coordinator) Refresh(ctx context.Context, slot Slot) (FetchOutcome, error) {
	c.mu.Lock()
	sel, ok := c.selectors[slot]
	c.mu.Unlock()
	if !ok {
		return 0, errors.Wrapf(ErrSlotEmpty, "refreshing %s", slot)
	}
	return c.Fetch(ctx, slot, sel)
}

// FetchAll fetches several slots concurrently and returns the first failure.
// A failing slot does not cancel the others.
func (c *Coordinator) FetchAll(ctx context.Context, sels map[Slot]allocation.SemesterSelector) error {
	var g errgroup.Group
	for slot, sel := range sels {
		slot, sel := slot, sel
		g.Go(func() error {
			_, err := c.Fetch(ctx, slot, sel)
			return err
		})
	}
	return g.Wait()
}

// Applied returns the sequence number of the slot's applied summary; 0 if none.
func (c *Coordinator) Applied(slot Slot) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied[slot]
}

// LastError returns the slot's surfaced fetch failure, if not dismissed.
func (c *Coordinator) LastError(slot Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs[slot]
}

func (c *Coordinator) DismissError(slot Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.errs, slot)
}

// Subscribe registers fn to be called after every applied summary and surfaced failure.
// Within a slot events are delivered one at a time in Seq order; an event that lost the race
// to a later one is not delivered. fn runs on the fetching goroutine and must not call
// Fetch, Refresh or FetchAll. The returned func unsubscribes.
func (c *Coordinator) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Close tears the view down: the Store is emptied and responses still in flight are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.listeners = make(map[int]func(Event))
	c.errs = make(map[Slot]error)
	c.store.Reset()
}

// must be called with c.mu held
func (c *Coordinator) snapshotListeners() []func(Event) {
	listeners := make([]func(Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

// deliver calls the listeners with evt unless a later event of the slot was already delivered.
func (c *Coordinator) deliver(listeners []func(Event), evt Event) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if evt.Seq <= c.notified[evt.Slot] {
		return false
	}
	c.notified[evt.Slot] = evt.Seq
	for _, fn := range listeners {
		fn(evt)
	}
	return true
}
