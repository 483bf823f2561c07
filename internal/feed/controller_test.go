package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mediafeed/internal/domain"
	"github.com/utafrali/mediafeed/internal/layout"
	apperrors "github.com/utafrali/mediafeed/pkg/errors"
	"github.com/utafrali/mediafeed/pkg/logger"
)

// --- Mock Fetcher ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchPage(ctx context.Context, page, perPage int) ([]*domain.MediaItem, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MediaItem), args.Error(1)
}

// --- Gated Fetcher ---

// gatedFetcher blocks every fetch until the test responds to it, which lets
// tests interleave completions deterministically.
type gatedFetcher struct {
	calls chan *pendingFetch
	count atomic.Int32
}

type pendingFetch struct {
	page    int
	perPage int
	reply   chan fetchResult
}

type fetchResult struct {
	items []*domain.MediaItem
	err   error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{calls: make(chan *pendingFetch, 16)}
}

func (f *gatedFetcher) FetchPage(_ context.Context, page, perPage int) ([]*domain.MediaItem, error) {
	f.count.Add(1)
	p := &pendingFetch{page: page, perPage: perPage, reply: make(chan fetchResult, 1)}
	f.calls <- p
	res := <-p.reply
	return res.items, res.err
}

func (f *gatedFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func (p *pendingFetch) respond(items []*domain.MediaItem, err error) {
	p.reply <- fetchResult{items: items, err: err}
}

// --- Test Helpers ---

func photos(ids ...int64) []*domain.MediaItem {
	items := make([]*domain.MediaItem, len(ids))
	for i, id := range ids {
		items[i] = &domain.MediaItem{ID: id, Type: domain.MediaTypePhoto, Width: 100, Height: 100}
	}
	return items
}

func itemIDs(items []*domain.MediaItem) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func newTestController(f Fetcher, perPage int) *Controller {
	return NewController(f, layout.NewBalancer(3, nil), perPage, logger.Discard())
}

func await(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for load to return")
		return nil
	}
}

// --- Tests ---

func TestNewController_InitialState(t *testing.T) {
	c := newTestController(new(mockFetcher), 50)

	assert.NotEmpty(t, c.SessionID())
	assert.False(t, c.IsLoading())
	assert.True(t, c.HasMorePages())
	assert.NoError(t, c.LastError())
	require.Len(t, c.CurrentColumns(), 3)
	assert.Equal(t, 0, c.CurrentColumns().Len())
}

func TestRefresh_Success(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 3).Return(photos(1, 2, 3), nil)
	c := newTestController(f, 3)

	err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, itemIDs(c.Items()))
	assert.True(t, c.HasMorePages())
	assert.False(t, c.IsLoading())

	cols := c.CurrentColumns()
	require.Len(t, cols, 3)
	assert.Equal(t, []int64{1}, itemIDs(cols[0]))
	assert.Equal(t, []int64{2}, itemIDs(cols[1]))
	assert.Equal(t, []int64{3}, itemIDs(cols[2]))
	f.AssertExpectations(t)
}

func TestRefresh_ReplacesList(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 2).Return(photos(1, 2), nil).Once()
	f.On("FetchPage", mock.Anything, 2, 2).Return(photos(3, 4), nil).Once()
	f.On("FetchPage", mock.Anything, 1, 2).Return(photos(9), nil).Once()
	c := newTestController(f, 2)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	require.NoError(t, c.LoadNextPage(ctx))
	require.Equal(t, []int64{1, 2, 3, 4}, itemIDs(c.Items()))

	require.NoError(t, c.Refresh(ctx))

	assert.Equal(t, []int64{9}, itemIDs(c.Items()))
	assert.Equal(t, 1, c.CurrentColumns().Len())
	assert.False(t, c.HasMorePages())
	f.AssertExpectations(t)
}

func TestRefresh_EmptyFeed(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 50).Return([]*domain.MediaItem{}, nil)
	c := newTestController(f, 50)

	err := c.Refresh(context.Background())

	require.NoError(t, err)
	assert.False(t, c.HasMorePages())
	assert.NoError(t, c.LastError())
	cols := c.CurrentColumns()
	require.Len(t, cols, 3)
	for _, col := range cols {
		assert.Empty(t, col)
	}
}

func TestFeedItemsGauge_IsPerSession(t *testing.T) {
	small := new(mockFetcher)
	small.On("FetchPage", mock.Anything, 1, 50).Return(photos(1, 2), nil)
	large := new(mockFetcher)
	large.On("FetchPage", mock.Anything, 1, 50).Return(photos(3, 4, 5, 6, 7), nil)
	a := newTestController(small, 50)
	b := newTestController(large, 50)
	ctx := context.Background()

	require.NoError(t, a.Refresh(ctx))
	require.NoError(t, b.Refresh(ctx))

	assert.Equal(t, float64(2), testutil.ToFloat64(feedItems.WithLabelValues(a.SessionID())))
	assert.Equal(t, float64(5), testutil.ToFloat64(feedItems.WithLabelValues(b.SessionID())))
}

func TestLoadNextPage_AppendsAndRebalances(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 2).Return(photos(1, 2), nil)
	f.On("FetchPage", mock.Anything, 2, 2).Return(photos(3, 4), nil)
	c := newTestController(f, 2)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	require.NoError(t, c.LoadNextPage(ctx))

	assert.Equal(t, []int64{1, 2, 3, 4}, itemIDs(c.Items()))
	cols := c.CurrentColumns()
	assert.Equal(t, []int64{1, 4}, itemIDs(cols[0]))
	assert.Equal(t, []int64{2}, itemIDs(cols[1]))
	assert.Equal(t, []int64{3}, itemIDs(cols[2]))
	assert.Equal(t, 2, c.Snapshot().CurrentPage)
	f.AssertExpectations(t)
}

func TestLoadNextPage_RejectedWhenExhausted(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 50).Return(photos(1), nil)
	c := newTestController(f, 50)
	require.NoError(t, c.Refresh(context.Background()))

	err := c.LoadNextPage(context.Background())

	assert.ErrorIs(t, err, ErrRejected)
	f.AssertNumberOfCalls(t, "FetchPage", 1)
}

func TestLoadNextPage_FailureLeavesListUntouched(t *testing.T) {
	f := new(mockFetcher)
	netErr := apperrors.NetworkFailure("pexels returned status 503", nil)
	f.On("FetchPage", mock.Anything, 1, 2).Return(photos(1, 2), nil)
	f.On("FetchPage", mock.Anything, 2, 2).Return(nil, netErr).Once()
	c := newTestController(f, 2)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	before := c.CurrentColumns()

	err := c.LoadNextPage(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNetworkFailure)
	assert.Equal(t, netErr, c.LastError())
	assert.Equal(t, "pexels returned status 503", apperrors.Message(c.LastError()))
	assert.Equal(t, []int64{1, 2}, itemIDs(c.Items()))
	assert.Equal(t, before, c.CurrentColumns())
	assert.False(t, c.IsLoading(), "cursor back to idle after failure")
	assert.True(t, c.CanLoadMore(), "user can retry")
}

func TestLoadNextPage_RetryAfterFailureClearsError(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 2).Return(photos(1, 2), nil)
	f.On("FetchPage", mock.Anything, 2, 2).Return(nil, errors.New("timeout")).Once()
	f.On("FetchPage", mock.Anything, 2, 2).Return(photos(3), nil).Once()
	c := newTestController(f, 2)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	require.Error(t, c.LoadNextPage(ctx))
	require.Error(t, c.LastError())

	require.NoError(t, c.LoadNextPage(ctx))
	assert.NoError(t, c.LastError())
	assert.Equal(t, []int64{1, 2, 3}, itemIDs(c.Items()))
	assert.False(t, c.HasMorePages())
}

func TestRefresh_FailureKeepsPreviousList(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 2).Return(photos(1, 2), nil).Once()
	f.On("FetchPage", mock.Anything, 1, 2).Return(nil, apperrors.DecodeFailure("bad json", nil)).Once()
	c := newTestController(f, 2)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	err := c.Refresh(ctx)

	assert.ErrorIs(t, err, apperrors.ErrDecodeFailure)
	assert.Equal(t, []int64{1, 2}, itemIDs(c.Items()))
	assert.True(t, c.HasMorePages())
	assert.False(t, c.IsLoading())
}

func TestFetcherPanicIsContained(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 50).Run(func(mock.Arguments) { panic("boom") })
	c := newTestController(f, 50)

	err := c.Refresh(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher panic: boom")
	assert.False(t, c.IsLoading())
	assert.Error(t, c.LastError())
}

func TestLoadNextPageIfNeeded(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 2).Return(photos(1, 2), nil)
	f.On("FetchPage", mock.Anything, 2, 2).Return(photos(3, 4), nil)
	c := newTestController(f, 2)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))
	items := c.Items()

	require.NoError(t, c.LoadNextPageIfNeeded(ctx, items[0]))
	require.NoError(t, c.LoadNextPageIfNeeded(ctx, nil))
	f.AssertNumberOfCalls(t, "FetchPage", 1)

	require.NoError(t, c.LoadNextPageIfNeeded(ctx, items[1]))
	f.AssertNumberOfCalls(t, "FetchPage", 2)
	assert.Equal(t, []int64{1, 2, 3, 4}, itemIDs(c.Items()))
}

func TestLoadNextPageIfNeeded_EmptyListIsNoop(t *testing.T) {
	f := new(mockFetcher)
	c := newTestController(f, 2)

	err := c.LoadNextPageIfNeeded(context.Background(), photos(1)[0])

	assert.NoError(t, err)
	f.AssertNotCalled(t, "FetchPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestItemLookup(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchPage", mock.Anything, 1, 50).Return(photos(7, 8), nil)
	c := newTestController(f, 50)
	require.NoError(t, c.Refresh(context.Background()))

	item, ok := c.Item(8)
	require.True(t, ok)
	assert.Equal(t, int64(8), item.ID)

	_, ok = c.Item(99)
	assert.False(t, ok)
}

// At most one fetch may be in flight, whatever the number of callers.
func TestLoadNextPage_ConcurrentCallersStartOneFetch(t *testing.T) {
	f := newGatedFetcher()
	c := newTestController(f, 2)
	ctx := context.Background()

	refreshed := make(chan error, 1)
	go func() { refreshed <- c.Refresh(ctx) }()
	f.next(t).respond(photos(1, 2), nil)
	require.NoError(t, await(t, refreshed))

	const callers = 32
	results := make(chan error, callers)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < callers; i++ {
		go func() {
			start.Wait()
			results <- c.LoadNextPage(ctx)
		}()
	}
	start.Done()

	inFlight := f.next(t)
	assert.Equal(t, 2, inFlight.page)

	// Every caller except the one that won returns immediately.
	rejected := 0
	for i := 0; i < callers-1; i++ {
		err := await(t, results)
		require.ErrorIs(t, err, ErrRejected)
		rejected++
	}
	assert.Equal(t, callers-1, rejected)
	assert.True(t, c.IsLoading())
	assert.False(t, c.CanLoadMore())

	inFlight.respond(photos(3, 4), nil)
	require.NoError(t, await(t, results))
	assert.Equal(t, int32(2), f.count.Load())
	assert.False(t, c.IsLoading())
	assert.Equal(t, []int64{1, 2, 3, 4}, itemIDs(c.Items()))
}

func TestRefreshDuringNextPage_StaleResultDiscarded(t *testing.T) {
	f := newGatedFetcher()
	c := newTestController(f, 2)
	ctx := context.Background()

	refreshed := make(chan error, 1)
	go func() { refreshed <- c.Refresh(ctx) }()
	f.next(t).respond(photos(1, 2), nil)
	require.NoError(t, await(t, refreshed))

	nextDone := make(chan error, 1)
	go func() { nextDone <- c.LoadNextPage(ctx) }()
	g1 := f.next(t)
	require.Equal(t, 2, g1.page)

	refreshDone := make(chan error, 1)
	go func() { refreshDone <- c.Refresh(ctx) }()
	g2 := f.next(t)
	require.Equal(t, 1, g2.page)

	g2.respond(photos(10, 11), nil)
	require.NoError(t, await(t, refreshDone))

	g1.respond(photos(3, 4), nil)
	assert.ErrorIs(t, await(t, nextDone), ErrSuperseded)

	assert.Equal(t, []int64{10, 11}, itemIDs(c.Items()))
	assert.Equal(t, 2, c.CurrentColumns().Len())
	assert.Equal(t, 1, c.Snapshot().CurrentPage)
	assert.False(t, c.IsLoading())
}

func TestRefreshDuringNextPage_StaleCompletesFirst(t *testing.T) {
	f := newGatedFetcher()
	c := newTestController(f, 2)
	ctx := context.Background()

	refreshed := make(chan error, 1)
	go func() { refreshed <- c.Refresh(ctx) }()
	f.next(t).respond(photos(1, 2), nil)
	require.NoError(t, await(t, refreshed))

	nextDone := make(chan error, 1)
	go func() { nextDone <- c.LoadNextPage(ctx) }()
	g1 := f.next(t)

	refreshDone := make(chan error, 1)
	go func() { refreshDone <- c.Refresh(ctx) }()
	g2 := f.next(t)

	g1.respond(photos(3, 4), nil)
	assert.ErrorIs(t, await(t, nextDone), ErrSuperseded)
	assert.True(t, c.IsLoading(), "refresh still in flight")
	assert.Equal(t, []int64{1, 2}, itemIDs(c.Items()))

	g2.respond(photos(20), nil)
	require.NoError(t, await(t, refreshDone))
	assert.Equal(t, []int64{20}, itemIDs(c.Items()))
	assert.False(t, c.HasMorePages())
}

func TestRefreshDuringNextPage_StaleFailureIgnored(t *testing.T) {
	f := newGatedFetcher()
	c := newTestController(f, 2)
	ctx := context.Background()

	refreshed := make(chan error, 1)
	go func() { refreshed <- c.Refresh(ctx) }()
	f.next(t).respond(photos(1, 2), nil)
	require.NoError(t, await(t, refreshed))

	nextDone := make(chan error, 1)
	go func() { nextDone <- c.LoadNextPage(ctx) }()
	g1 := f.next(t)

	refreshDone := make(chan error, 1)
	go func() { refreshDone <- c.Refresh(ctx) }()
	g2 := f.next(t)
	g2.respond(photos(5, 6), nil)
	require.NoError(t, await(t, refreshDone))

	g1.respond(nil, errors.New("connection reset"))
	assert.ErrorIs(t, await(t, nextDone), ErrSuperseded)
	assert.NoError(t, c.LastError(), "stale failure does not surface")
}

func TestReadersDuringFetch(t *testing.T) {
	f := newGatedFetcher()
	c := newTestController(f, 2)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	pending := f.next(t)

	// Readers are not blocked by an in-flight fetch.
	snap := c.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.Equal(t, 0, snap.ItemCount)
	assert.Len(t, c.CurrentColumns(), 3)

	pending.respond(photos(1), nil)
	require.NoError(t, await(t, done))
}
