package filters

import (
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock runs AfterFunc callbacks when Advance passes their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, rest []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.stopped = true
		t.f()
	}
}

// live counts timers that have neither fired nor been stopped.
func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type harness struct {
	clock   *fakeClock
	loc     *MemoryLocation
	sync    *Sync
	changes []State
	writes  []string
}

func newHarness(t *testing.T, rawQuery string) *harness {
	t.Helper()
	loc, err := NewMemoryLocation(rawQuery)
	require.NoError(t, err)

	h := &harness{clock: newFakeClock(), loc: loc}
	loc.OnReplace(func(q url.Values) { h.writes = append(h.writes, q.Encode()) })
	h.sync = New(loc, WithClock(h.clock), OnChange(func(s State) { h.changes = append(h.changes, s) }))
	t.Cleanup(h.sync.Close)
	return h
}

func (h *harness) debouncedTransitions() []string {
	var out []string
	prev := ""
	for _, s := range h.changes {
		if s.DebouncedSearchQuery != prev {
			out = append(out, s.DebouncedSearchQuery)
			prev = s.DebouncedSearchQuery
		}
	}
	return out
}

func TestMountReadsURL(t *testing.T) {
	h := newHarness(t, "search=shoes&category=12&min_price=10&page=2")

	st := h.sync.State()
	assert.Equal(t, "shoes", st.SearchQuery)
	assert.Equal(t, "shoes", st.DebouncedSearchQuery)
	assert.Equal(t, "12", st.Category)
	assert.Equal(t, "10", st.MinPrice)
	assert.Equal(t, 3, st.ActiveFilterCount())
	assert.Empty(t, h.writes, "mount does not write the url")
}

func TestDebounceCoalescesKeystrokes(t *testing.T) {
	h := newHarness(t, "")

	h.sync.SetSearchQuery("s")
	h.clock.Advance(100 * time.Millisecond)
	h.sync.SetSearchQuery("sh")
	h.clock.Advance(100 * time.Millisecond)
	h.sync.SetSearchQuery("shoes")

	assert.Equal(t, "shoes", h.sync.State().SearchQuery, "raw value is immediate")
	assert.Empty(t, h.sync.State().DebouncedSearchQuery)
	assert.Empty(t, h.writes, "raw keystrokes never reach the url")

	phase, deadline := h.sync.Pending()
	assert.Equal(t, PendingDebounce, phase)
	assert.Equal(t, h.clock.Now().Add(DebounceWindow), deadline)
	assert.Equal(t, 1, h.clock.live(), "one timer handle at a time")

	h.clock.Advance(299 * time.Millisecond)
	assert.Empty(t, h.sync.State().DebouncedSearchQuery)

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"shoes"}, h.debouncedTransitions())
	assert.Equal(t, []string{"search=shoes"}, h.writes)

	phase, _ = h.sync.Pending()
	assert.Equal(t, Idle, phase)
}

func TestClearedSearchLeavesNoKey(t *testing.T) {
	h := newHarness(t, "page=3")

	h.sync.SetSearchQuery("shoes")
	h.clock.Advance(DebounceWindow)
	assert.Equal(t, "page=3&search=shoes", h.loc.String())

	h.sync.SetSearchQuery("")
	h.clock.Advance(DebounceWindow)

	q := h.loc.Query()
	_, present := q[ParamSearch]
	assert.False(t, present, "cleared search must not be written as search=")
	assert.Equal(t, "page=3", h.loc.String())
}

func TestURLChangeIsLoopFree(t *testing.T) {
	h := newHarness(t, "")

	h.loc.Navigate(url.Values{ParamSearch: {"abc"}})
	h.sync.URLChanged()

	st := h.sync.State()
	assert.Equal(t, "abc", st.SearchQuery)
	assert.Equal(t, "abc", st.DebouncedSearchQuery, "no debounce for outside navigation")
	assert.Empty(t, h.writes)

	// nothing pending, so time passing writes nothing either
	h.clock.Advance(time.Second)
	assert.Empty(t, h.writes)
	assert.Equal(t, "search=abc", h.loc.String())

	// a repeated notification for the same url is a no-op
	before := len(h.changes)
	h.sync.URLChanged()
	assert.Len(t, h.changes, before)
}

func TestURLChangeCancelsPendingDebounce(t *testing.T) {
	h := newHarness(t, "")

	h.sync.SetSearchQuery("typing")
	h.clock.Advance(100 * time.Millisecond)

	h.loc.Navigate(url.Values{ParamSearch: {"global"}})
	h.sync.URLChanged()

	h.clock.Advance(time.Second)
	assert.Equal(t, "global", h.sync.State().DebouncedSearchQuery)
	assert.Empty(t, h.writes, "the stale keystroke must not overwrite the navigation")
	assert.Equal(t, "search=global", h.loc.String())
}

func TestURLChangeAdoptsStructuredFilters(t *testing.T) {
	h := newHarness(t, "search=a")

	h.loc.Navigate(url.Values{ParamSearch: {"a"}, ParamCategory: {"7"}, ParamMaxPrice: {"50"}})
	h.sync.URLChanged()

	st := h.sync.State()
	assert.Equal(t, "7", st.Category)
	assert.Equal(t, "50", st.MaxPrice)
	assert.Empty(t, h.writes)
}

func TestOwnWriteEchoIsIgnored(t *testing.T) {
	h := newHarness(t, "")

	h.sync.SetCategory("3")
	require.Equal(t, []string{"category=3"}, h.writes)

	// typing continues while the host reports the url change it just saw
	h.sync.SetSearchQuery("boo")
	h.sync.URLChanged()

	assert.Equal(t, "boo", h.sync.State().SearchQuery, "echo of our own write must not reset keystrokes")
	h.clock.Advance(DebounceWindow)
	assert.Equal(t, "category=3&search=boo", h.loc.String())
}

func TestNavigateBackToOwnWrite(t *testing.T) {
	h := newHarness(t, "")

	h.sync.SetSearchQuery("abc")
	h.clock.Advance(DebounceWindow)
	require.Equal(t, "search=abc", h.loc.String())

	h.loc.Navigate(url.Values{ParamSearch: {"xyz"}})
	h.sync.URLChanged()
	require.Equal(t, "xyz", h.sync.State().SearchQuery)

	// back to the query this Sync wrote earlier
	h.loc.Navigate(url.Values{ParamSearch: {"abc"}})
	h.sync.URLChanged()

	st := h.sync.State()
	assert.Equal(t, "abc", st.SearchQuery)
	assert.Equal(t, "abc", st.DebouncedSearchQuery)
	assert.Equal(t, []string{"search=abc"}, h.writes)
}

func TestNavigateBackClearsStructuredWrite(t *testing.T) {
	h := newHarness(t, "")

	h.sync.SetCategory("3")
	h.loc.Navigate(url.Values{})
	h.sync.URLChanged()
	assert.Empty(t, h.sync.State().Category)

	h.loc.Navigate(url.Values{ParamCategory: {"3"}})
	h.sync.URLChanged()
	assert.Equal(t, "3", h.sync.State().Category)
	assert.Equal(t, []string{"category=3"}, h.writes)
}

func TestStructuredFilterWritesImmediately(t *testing.T) {
	h := newHarness(t, "")

	h.sync.SetMinPrice("10")
	h.sync.SetMaxPrice("90")
	h.sync.SetMaxPrice("90")

	assert.Equal(t, []string{"min_price=10", "max_price=90&min_price=10"}, h.writes)
	assert.Equal(t, 2, h.sync.State().ActiveFilterCount())
}

func TestBatchWritesOnce(t *testing.T) {
	h := newHarness(t, "page=1")

	h.sync.Batch(func(tx *Tx) {
		tx.SetCategory("12")
		tx.SetMinPrice("5")
		tx.SetMaxPrice("40")
	})

	assert.Equal(t, 1, h.loc.Replaces())
	assert.Len(t, h.changes, 1)
	assert.Equal(t, "category=12&max_price=40&min_price=5&page=1", h.loc.String())
}

func TestBatchWithSearchDefersSearch(t *testing.T) {
	h := newHarness(t, "")

	h.sync.Batch(func(tx *Tx) {
		tx.SetCategory("9")
		tx.SetSearchQuery("hat")
	})
	assert.Equal(t, []string{"category=9"}, h.writes)

	h.clock.Advance(DebounceWindow)
	assert.Equal(t, []string{"category=9", "category=9&search=hat"}, h.writes)
}

func TestClearFiltersIsImmediate(t *testing.T) {
	h := newHarness(t, "search=shoes&category=2&min_price=1&max_price=9&page=4")

	h.sync.SetSearchQuery("shoes and socks")
	h.sync.ClearFilters()

	assert.Equal(t, State{}, h.sync.State())
	assert.Equal(t, []string{"page=4"}, h.writes)
	assert.False(t, h.sync.State().HasActiveFilters())

	phase, _ := h.sync.Pending()
	assert.Equal(t, Idle, phase)

	h.clock.Advance(time.Second)
	assert.Len(t, h.writes, 1, "cancelled debounce never fires")
}

func TestCloseCancelsTimer(t *testing.T) {
	h := newHarness(t, "")

	h.sync.SetSearchQuery("late")
	h.sync.Close()
	assert.Zero(t, h.clock.live())

	h.clock.Advance(time.Second)
	assert.Empty(t, h.writes)
	assert.Empty(t, h.sync.State().DebouncedSearchQuery)

	h.sync.SetCategory("1")
	h.sync.ClearFilters()
	assert.Empty(t, h.writes, "setters are ignored after teardown")
}

func TestStaleCallbackIsDiscarded(t *testing.T) {
	h := newHarness(t, "")

	h.sync.SetSearchQuery("old")
	h.clock.mu.Lock()
	stale := h.clock.timers[0]
	h.clock.mu.Unlock()

	h.sync.SetSearchQuery("new")
	// a callback that was already running when it got superseded
	stale.f()

	assert.Empty(t, h.sync.State().DebouncedSearchQuery)
	h.clock.Advance(DebounceWindow)
	assert.Equal(t, []string{"search=new"}, h.writes)
}

func TestRealClockDebounce(t *testing.T) {
	loc, err := NewMemoryLocation("")
	require.NoError(t, err)

	done := make(chan struct{}, 1)
	loc.OnReplace(func(url.Values) { done <- struct{}{} })

	s := New(loc, WithDebounce(10*time.Millisecond))
	defer s.Close()

	s.SetSearchQuery("x")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced write never happened")
	}
	assert.Equal(t, "search=x", loc.String())
}
