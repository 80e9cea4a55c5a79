package filters

import (
	"net/url"
	"sync"
)

// Location is the query-string half of an address bar.
type Location interface {
	// Query returns the current query parameters.
	Query() url.Values
	// ReplaceQuery swaps the query in place without adding a history entry.
	ReplaceQuery(q url.Values)
}

// MemoryLocation is an in-memory Location.
type MemoryLocation struct {
	mu        sync.Mutex
	q         url.Values
	replaces  int
	onReplace func(url.Values)
}

// NewMemoryLocation parses rawQuery ("search=shoes&page=2").
func NewMemoryLocation(rawQuery string) (*MemoryLocation, error) {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	return &MemoryLocation{q: q}, nil
}

// OnReplace registers fn to run after every ReplaceQuery. fn must not call
// back into the Sync that owns this location.
func (l *MemoryLocation) OnReplace(fn func(url.Values)) {
	l.mu.Lock()
	l.onReplace = fn
	l.mu.Unlock()
}

func (l *MemoryLocation) Query() url.Values {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneValues(l.q)
}

func (l *MemoryLocation) ReplaceQuery(q url.Values) {
	l.mu.Lock()
	l.q = cloneValues(q)
	l.replaces++
	fn := l.onReplace
	l.mu.Unlock()

	if fn != nil {
		fn(cloneValues(q))
	}
}

// Navigate sets the query as an outside actor would (a link, the back
// button). The owner is expected to call Sync.URLChanged afterwards.
func (l *MemoryLocation) Navigate(q url.Values) {
	l.mu.Lock()
	l.q = cloneValues(q)
	l.mu.Unlock()
}

// Replaces counts ReplaceQuery calls.
func (l *MemoryLocation) Replaces() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaces
}

// String returns the encoded query.
func (l *MemoryLocation) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Encode()
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
