// Package pagination tracks the cursor of an incrementally loaded collection.
//
// State is a two-phase machine (Idle, Loading). Every fetch it authorizes is
// described by a Ticket carrying the target page and a generation number; a
// refresh bumps the generation so completions of superseded fetches can be
// recognized and discarded.
//
// State is not safe for concurrent use. The owner (the feed controller)
// serializes every call, which is what makes the check-and-start in
// RequestNextPage atomic.
package pagination

// DefaultPerPage is the page size used when none is configured.
const DefaultPerPage = 50

// Params holds the page coordinates of a single fetch.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultParams returns the coordinates of the first page.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: DefaultPerPage,
	}
}

// Phase is the coarse state of the cursor.
type Phase int

const (
	Idle Phase = iota
	Loading
)

func (p Phase) String() string {
	if p == Loading {
		return "loading"
	}
	return "idle"
}

// Ticket authorizes exactly one fetch.
type Ticket struct {
	Params
	Generation uint64
	Refresh    bool
}

// Snapshot is a read-only copy of the cursor.
type Snapshot struct {
	Phase        Phase  `json:"phase"`
	CurrentPage  int    `json:"current_page"`
	PerPage      int    `json:"per_page"`
	HasMorePages bool   `json:"has_more_pages"`
	Generation   uint64 `json:"generation"`
}

// State is the pagination cursor of one feed session.
type State struct {
	phase      Phase
	page       int
	perPage    int
	hasMore    bool
	generation uint64
	inFlight   Ticket
}

// New creates a cursor at page 1 with more pages assumed available.
// Non-positive perPage values fall back to DefaultPerPage.
func New(perPage int) *State {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &State{
		phase:   Idle,
		page:    1,
		perPage: perPage,
		hasMore: true,
	}
}

// CanLoadMore reports whether a next-page fetch may start now.
func (s *State) CanLoadMore() bool {
	return s.phase == Idle && s.hasMore
}

// IsLoading reports whether a fetch is in flight.
func (s *State) IsLoading() bool {
	return s.phase == Loading
}

// HasMorePages reports whether the last completed page was a full one.
func (s *State) HasMorePages() bool {
	return s.hasMore
}

// CurrentPage returns the last successfully completed page.
func (s *State) CurrentPage() int {
	return s.page
}

// PerPage returns the fixed page size.
func (s *State) PerPage() int {
	return s.perPage
}

// RequestNextPage moves Idle to Loading targeting page+1. It returns false,
// leaving the state untouched, when a fetch is already in flight or the
// collection is exhausted.
func (s *State) RequestNextPage() (Ticket, bool) {
	if !s.CanLoadMore() {
		return Ticket{}, false
	}
	s.phase = Loading
	s.inFlight = Ticket{
		Params:     Params{Page: s.page + 1, PerPage: s.perPage},
		Generation: s.generation,
	}
	return s.inFlight, true
}

// RequestRefresh moves to Loading targeting page 1 from any phase. Any fetch
// already in flight becomes stale.
func (s *State) RequestRefresh() Ticket {
	s.generation++
	s.phase = Loading
	s.inFlight = Ticket{
		Params:     Params{Page: 1, PerPage: s.perPage},
		Generation: s.generation,
		Refresh:    true,
	}
	return s.inFlight
}

// IsCurrent reports whether t is the fetch the cursor is waiting for.
func (s *State) IsCurrent(t Ticket) bool {
	return s.phase == Loading && t == s.inFlight
}

// CompleteSuccess records a successful fetch of t. A short page (fewer than
// pageSize items, or none) marks the end of the collection. It returns false,
// without changing anything, when t is stale.
func (s *State) CompleteSuccess(t Ticket, itemCount, pageSize int) bool {
	if !s.IsCurrent(t) {
		return false
	}
	s.phase = Idle
	s.page = t.Page
	s.hasMore = itemCount > 0 && itemCount >= pageSize
	return true
}

// CompleteFailure returns to Idle keeping page and hasMore, so the same page
// can be retried. It returns false when t is stale.
func (s *State) CompleteFailure(t Ticket) bool {
	if !s.IsCurrent(t) {
		return false
	}
	s.phase = Idle
	return true
}

// Snapshot returns a copy of the cursor.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Phase:        s.phase,
		CurrentPage:  s.page,
		PerPage:      s.perPage,
		HasMorePages: s.hasMore,
		Generation:   s.generation,
	}
}
