package filters

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DebounceWindow is how long the search value has to stay unchanged before
// it reaches the URL.
const DebounceWindow = 300 * time.Millisecond

// Phase is the state of the debounce timer.
type Phase int

const (
	Idle Phase = iota
	PendingDebounce
)

func (p Phase) String() string {
	if p == PendingDebounce {
		return "pending_debounce"
	}
	return "idle"
}

// Sync binds a State to a Location. URL to state runs only when the URL's
// search value differs from the raw in-memory value; state to URL runs only
// when the debounced search or a structured filter changes, never on raw
// keystrokes.
//
// Location and OnChange callbacks run with the Sync lock held and must not
// call back into the Sync.
type Sync struct {
	mu       sync.Mutex
	loc      Location
	clock    Clock
	debounce time.Duration
	onChange func(State)
	log      zerolog.Logger

	state    State
	timer    Timer
	deadline time.Time
	gen      uint64
	closed   bool
}

// Option configures a Sync.
type Option func(*Sync)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Sync) { s.clock = c }
}

// WithDebounce overrides DebounceWindow.
func WithDebounce(d time.Duration) Option {
	return func(s *Sync) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// OnChange registers fn to observe every state transition.
func OnChange(fn func(State)) Option {
	return func(s *Sync) { s.onChange = fn }
}

// WithLogger sets the debug logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sync) { s.log = l }
}

// New mounts a Sync on loc, taking the initial state from its query. The
// URL is not written on mount.
func New(loc Location, opts ...Option) *Sync {
	s := &Sync{
		loc:      loc,
		clock:    realClock{},
		debounce: DebounceWindow,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.state = FromQuery(loc.Query())
	return s
}

// State returns a snapshot.
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports the timer phase and, when pending, its deadline.
func (s *Sync) Pending() (Phase, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return Idle, time.Time{}
	}
	return PendingDebounce, s.deadline
}

// SetSearchQuery records a keystroke and restarts the debounce timer.
func (s *Sync) SetSearchQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.setSearchLocked(q) {
		s.notifyLocked()
	}
}

// SetCategory selects a category id; "" clears it. Each structured setter
// rewrites the URL on its own; use Batch when several filters change
// together.
func (s *Sync) SetCategory(v string) { s.Batch(func(tx *Tx) { tx.SetCategory(v) }) }

// SetMinPrice sets the lower price bound; "" clears it.
func (s *Sync) SetMinPrice(v string) { s.Batch(func(tx *Tx) { tx.SetMinPrice(v) }) }

// SetMaxPrice sets the upper price bound; "" clears it.
func (s *Sync) SetMaxPrice(v string) { s.Batch(func(tx *Tx) { tx.SetMaxPrice(v) }) }

// Tx collects changes made inside Batch.
type Tx struct {
	s        *Sync
	changed  bool
	urlDirty bool
}

func (tx *Tx) SetSearchQuery(q string) {
	if tx.s.setSearchLocked(q) {
		tx.changed = true
	}
}

func (tx *Tx) SetCategory(v string) { tx.setField(&tx.s.state.Category, v) }
func (tx *Tx) SetMinPrice(v string) { tx.setField(&tx.s.state.MinPrice, v) }
func (tx *Tx) SetMaxPrice(v string) { tx.setField(&tx.s.state.MaxPrice, v) }

func (tx *Tx) setField(field *string, v string) {
	if *field == v {
		return
	}
	*field = v
	tx.changed = true
	tx.urlDirty = true
}

// Batch applies several changes as one transition with at most one URL
// rewrite. fn must not call methods on the Sync itself.
func (s *Sync) Batch(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	tx := &Tx{s: s}
	fn(tx)
	if tx.changed {
		s.notifyLocked()
	}
	if tx.urlDirty {
		s.writeURLLocked()
	}
}

// ClearFilters resets every field at once. The debounced search is forced
// so the URL reflects the clear without waiting for the timer.
func (s *Sync) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancelTimerLocked()
	if s.state != (State{}) {
		s.state = State{}
		s.notifyLocked()
	}
	s.writeURLLocked()
}

// URLChanged adopts the location's query after outside navigation. A
// search value different from the raw one replaces both search fields
// immediately and cancels a pending debounce. It never writes the URL.
//
// A query that already serializes the current state is the echo of this
// Sync's own write and is ignored, so keystrokes typed since then survive.
func (s *Sync) URLChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	q := s.loc.Query()
	if q.Encode() == s.state.Merge(q).Encode() {
		return
	}

	next := FromQuery(q)
	changed := false
	if next.SearchQuery != s.state.SearchQuery {
		s.cancelTimerLocked()
		s.state.SearchQuery = next.SearchQuery
		s.state.DebouncedSearchQuery = next.DebouncedSearchQuery
		changed = true
	}
	if next.Category != s.state.Category || next.MinPrice != s.state.MinPrice || next.MaxPrice != s.state.MaxPrice {
		s.state.Category = next.Category
		s.state.MinPrice = next.MinPrice
		s.state.MaxPrice = next.MaxPrice
		changed = true
	}
	if changed {
		s.log.Debug().Str("query", q.Encode()).Msg("filters adopted from url")
		s.notifyLocked()
	}
}

// Close cancels any pending debounce. Later calls are ignored and no timer
// callback takes effect.
func (s *Sync) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelTimerLocked()
}

func (s *Sync) setSearchLocked(q string) bool {
	s.cancelTimerLocked()
	gen := s.gen
	s.deadline = s.clock.Now().Add(s.debounce)
	s.timer = s.clock.AfterFunc(s.debounce, func() { s.fire(gen) })

	if s.state.SearchQuery == q {
		return false
	}
	s.state.SearchQuery = q
	return true
}

func (s *Sync) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// superseded, cancelled or torn down
	if s.closed || gen != s.gen {
		return
	}
	s.timer = nil
	s.deadline = time.Time{}

	if s.state.DebouncedSearchQuery == s.state.SearchQuery {
		return
	}
	s.state.DebouncedSearchQuery = s.state.SearchQuery
	s.notifyLocked()
	s.writeURLLocked()
}

// cancelTimerLocked stops the timer and bumps the generation so a callback
// already in flight is discarded.
func (s *Sync) cancelTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.deadline = time.Time{}
}

func (s *Sync) writeURLLocked() {
	cur := s.loc.Query()
	next := s.state.Merge(cur)
	encoded := next.Encode()
	if encoded == cur.Encode() {
		return
	}
	s.loc.ReplaceQuery(next)
	s.log.Debug().Str("query", encoded).Msg("filters written to url")
}

func (s *Sync) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.state)
	}
}
