package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"soltabs/pkg/jupiter"
	"soltabs/pkg/metrics"
	"soltabs/pkg/models"
	"soltabs/pkg/persist"
	"soltabs/pkg/store"
	"soltabs/pkg/widget"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	mintX = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	mintY = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	mintZ = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchTokenInfo(ctx context.Context, address string) (models.TokenRecord, error) {
	args := m.Called(address)
	return args.Get(0).(models.TokenRecord), args.Error(1)
}

func (m *MockFetcher) FetchPriceOnly(ctx context.Context, address string) *models.PriceData {
	args := m.Called(address)
	if pd, ok := args.Get(0).(*models.PriceData); ok {
		return pd
	}
	return nil
}

func (m *MockFetcher) SetAPIKey(key string) {
	m.Called(key)
}

func record(addr, symbol, price string) models.TokenRecord {
	return models.TokenRecord{Address: addr, Symbol: symbol, PriceData: &models.PriceData{ID: addr, Price: price}}
}

func newController(t *testing.T, f Fetcher, interval time.Duration) (*Controller, *persist.Adapter, *widget.Recorder) {
	t.Helper()
	p := persist.New(store.NewMemoryStore())
	term := widget.NewRecorder()
	c := New(Options{Fetcher: f, Persister: p, Terminal: term, RefreshInterval: interval})
	t.Cleanup(c.Close)
	return c, p, term
}

func TestAddOrSelectToken_FetchesOnce(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchTokenInfo", mintX).Return(record(mintX, "BONK", "0.00002"), nil).Once()
	c, p, term := newController(t, f, time.Hour)

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))
	require.NoError(t, c.AddOrSelectToken(context.Background(), "  "+mintX+" "))

	f.AssertNumberOfCalls(t, "FetchTokenInfo", 1)
	active, ok := c.Active()
	assert.True(t, ok)
	assert.Equal(t, mintX, active)
	assert.Equal(t, mintX, term.Props().InitialInputMint)
	assert.Equal(t, widget.WrappedSOLMint, term.Props().FixedMint)

	state, err := p.LoadTabs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{mintX}, state.Tabs)
	assert.Equal(t, mintX, state.Active)
}

func TestAddOrSelectToken_InvalidAddress(t *testing.T) {
	f := new(MockFetcher)
	c, _, _ := newController(t, f, time.Hour)

	for _, addr := range []string{"", "   ", "not-base58-0OIl", "abc"} {
		err := c.AddOrSelectToken(context.Background(), addr)
		assert.True(t, errors.Is(err, ErrInvalidAddress), addr)
	}
	f.AssertNotCalled(t, "FetchTokenInfo", mock.Anything)
	_, ok := c.Active()
	assert.False(t, ok)
}

func TestAddOrSelectToken_FetchErrorsLeaveStateUnchanged(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchTokenInfo", mintX).Return(record(mintX, "BONK", "1"), nil)
	f.On("FetchTokenInfo", mintY).Return(models.TokenRecord{}, jupiter.ErrNotFound)
	f.On("FetchTokenInfo", mintZ).Return(models.TokenRecord{}, jupiter.ErrNetwork)
	c, _, term := newController(t, f, time.Hour)

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))
	assert.True(t, errors.Is(c.AddOrSelectToken(context.Background(), mintY), jupiter.ErrNotFound))
	assert.True(t, errors.Is(c.AddOrSelectToken(context.Background(), mintZ), jupiter.ErrNetwork))

	assert.Equal(t, []string{mintX}, c.Addresses())
	active, _ := c.Active()
	assert.Equal(t, mintX, active)
	assert.Equal(t, 1, term.Inits())
}

func TestSelectAndCloseErrors(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchTokenInfo", mintX).Return(record(mintX, "BONK", "1"), nil)
	f.On("FetchTokenInfo", mintY).Return(record(mintY, "JUP", "0.5"), nil)
	c, _, _ := newController(t, f, time.Hour)

	assert.True(t, errors.Is(c.SelectTab(mintX), ErrUnknownTab))
	assert.True(t, errors.Is(c.CloseActive(), ErrNotActive))

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))
	require.NoError(t, c.AddOrSelectToken(context.Background(), mintY))
	assert.True(t, errors.Is(c.CloseTab(mintX), ErrNotActive))
	assert.Equal(t, []string{mintX, mintY}, c.Addresses())
}

func TestCloseTab_SelectsFirstRemaining(t *testing.T) {
	f := new(MockFetcher)
	for _, m := range []string{mintX, mintY, mintZ} {
		f.On("FetchTokenInfo", m).Return(record(m, "T", "1"), nil)
	}
	c, p, term := newController(t, f, time.Hour)
	sub := c.Subscribe()

	for _, m := range []string{mintX, mintY, mintZ} {
		require.NoError(t, c.AddOrSelectToken(context.Background(), m))
	}
	require.NoError(t, c.SelectTab(mintY))
	require.NoError(t, c.CloseTab(mintY))

	active, _ := c.Active()
	assert.Equal(t, mintX, active)
	assert.Equal(t, []string{mintX, mintZ}, c.Addresses())
	assert.Equal(t, mintX, term.Props().InitialInputMint)

	state, err := p.LoadTabs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{mintX, mintZ}, state.Tabs)
	assert.Equal(t, mintX, state.Active)

	var types []EventType
	for len(sub) > 0 {
		types = append(types, (<-sub).Type)
	}
	assert.Equal(t, []EventType{
		EventTabAdded, EventActiveChanged,
		EventTabAdded, EventActiveChanged,
		EventTabAdded, EventActiveChanged,
		EventActiveChanged,
		EventTabClosed, EventActiveChanged,
	}, types)
}

// countingFetcher counts price calls without the bookkeeping of a mock.
type countingFetcher struct {
	priceCalls atomic.Int64
}

func (f *countingFetcher) FetchTokenInfo(ctx context.Context, address string) (models.TokenRecord, error) {
	return record(address, "T", "1"), nil
}

func (f *countingFetcher) FetchPriceOnly(ctx context.Context, address string) *models.PriceData {
	f.priceCalls.Add(1)
	return nil
}

func TestCloseLastTab_StopsRefresh(t *testing.T) {
	f := &countingFetcher{}
	c, _, _ := newController(t, f, 10*time.Millisecond)
	sub := c.Subscribe()

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))
	assert.Eventually(t, func() bool { return f.priceCalls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.CloseActive())
	_, ok := c.Active()
	assert.False(t, ok)
	assert.Equal(t, 0, len(c.Tabs()))

	time.Sleep(30 * time.Millisecond)
	calls := f.priceCalls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, f.priceCalls.Load())

	var last Event
	for len(sub) > 0 {
		last = <-sub
	}
	assert.Equal(t, EventSessionCleared, last.Type)
}

func TestRefresh_PatchesActivePrice(t *testing.T) {
	f := new(MockFetcher)
	rec := record(mintX, "BONK", "1")
	rec.Name = "Bonk"
	f.On("FetchTokenInfo", mintX).Return(rec, nil)
	f.On("FetchPriceOnly", mintX).Return(&models.PriceData{ID: mintX, Price: "2"})
	c, _, _ := newController(t, f, 10*time.Millisecond)
	sub := c.Subscribe()

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))

	assert.Eventually(t, func() bool {
		for {
			select {
			case ev := <-sub:
				if ev.Type == EventPriceUpdated {
					return ev.Address == mintX && ev.Record.PriceData.Price == "2"
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)

	got, ok := c.Record(mintX)
	require.True(t, ok)
	assert.Equal(t, "Bonk", got.Name)
	assert.Equal(t, "2", got.PriceData.Price)
	assert.GreaterOrEqual(t, len(c.History(mintX)), 2)
}

func TestRefresh_AbsentPriceKeepsPrevious(t *testing.T) {
	f := &countingFetcher{}
	c, _, _ := newController(t, f, 10*time.Millisecond)

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))
	assert.Eventually(t, func() bool { return f.priceCalls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	got, _ := c.Record(mintX)
	require.NotNil(t, got.PriceData)
	assert.Equal(t, "1", got.PriceData.Price)
}

// slowFetcher blocks the first price call for mintX until released.
type slowFetcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *slowFetcher) FetchTokenInfo(ctx context.Context, address string) (models.TokenRecord, error) {
	return record(address, "T", "1"), nil
}

func (f *slowFetcher) FetchPriceOnly(ctx context.Context, address string) *models.PriceData {
	if address != mintX {
		return nil
	}
	first := false
	f.once.Do(func() { first = true })
	if !first {
		return nil
	}
	close(f.started)
	<-f.release
	return &models.PriceData{ID: mintX, Price: "999"}
}

func TestRefresh_StaleResultIsNotRendered(t *testing.T) {
	f := &slowFetcher{started: make(chan struct{}), release: make(chan struct{})}
	m := metrics.New()
	c := New(Options{Fetcher: f, Metrics: m, RefreshInterval: 10 * time.Millisecond})
	t.Cleanup(c.Close)
	sub := c.Subscribe()

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))
	select {
	case <-f.started:
	case <-time.After(time.Second):
		t.Fatal("refresh for first tab never started")
	}

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintY))
	close(f.release)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.StaleRefreshes) == 1
	}, time.Second, 5*time.Millisecond)

	active, _ := c.Active()
	assert.Equal(t, mintY, active)
	y, _ := c.Record(mintY)
	assert.Equal(t, "1", y.PriceData.Price)

	for len(sub) > 0 {
		ev := <-sub
		assert.NotEqual(t, EventPriceUpdated, ev.Type)
	}
}

func TestRefresh_ReplacedTaskDoesNotOverwrite(t *testing.T) {
	f := &slowFetcher{started: make(chan struct{}), release: make(chan struct{})}
	m := metrics.New()
	c := New(Options{Fetcher: f, Metrics: m, RefreshInterval: 10 * time.Millisecond})
	t.Cleanup(c.Close)

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))
	select {
	case <-f.started:
	case <-time.After(time.Second):
		t.Fatal("refresh never started")
	}

	// Re-selecting the active tab replaces its refresh task.
	require.NoError(t, c.SelectTab(mintX))
	close(f.release)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.StaleRefreshes) == 1
	}, time.Second, 5*time.Millisecond)

	x, _ := c.Record(mintX)
	assert.Equal(t, "1", x.PriceData.Price)
}

// brokenStore fails every read and write.
type brokenStore struct{ store.MemoryStore }

func (*brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk gone")
}

func (*brokenStore) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestPersistenceFailuresAreNotFatal(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchTokenInfo", mintX).Return(record(mintX, "BONK", "1"), nil)
	m := metrics.New()
	term := widget.NewRecorder()
	c := New(Options{
		Fetcher:         f,
		Persister:       persist.New(&brokenStore{}),
		Terminal:        term,
		Metrics:         m,
		RefreshInterval: time.Hour,
	})
	t.Cleanup(c.Close)

	c.Hydrate(context.Background())
	_, ok := c.Active()
	assert.False(t, ok)
	assert.Empty(t, c.Tabs())
	assert.Equal(t, models.ThemeDark, c.Settings().Theme)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PersistFailures))

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))
	active, ok := c.Active()
	assert.True(t, ok)
	assert.Equal(t, mintX, active)
	assert.Equal(t, mintX, term.Props().InitialInputMint)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PersistFailures))
}

func TestSwapProps_UsesConfiguredFixedMint(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchTokenInfo", mintX).Return(record(mintX, "BONK", "1"), nil)
	term := widget.NewRecorder()
	c := New(Options{Fetcher: f, Terminal: term, RefreshInterval: time.Hour, FixedMint: mintZ})
	t.Cleanup(c.Close)

	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))
	assert.Equal(t, mintZ, term.Props().FixedMint)
	assert.Equal(t, widget.SwapURL(mintX, mintZ), c.SwapProps(mintX).URL())
	assert.Equal(t, widget.DefaultInputMint, c.SwapProps("").InitialInputMint)

	def := New(Options{Fetcher: f})
	t.Cleanup(def.Close)
	assert.Equal(t, widget.WrappedSOLMint, def.SwapProps(mintX).FixedMint)
}

func TestHydrate_RoundTrip(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchTokenInfo", mintX).Return(record(mintX, "BONK", "1"), nil).After(20 * time.Millisecond)
	f.On("FetchTokenInfo", mintY).Return(record(mintY, "JUP", "0.5"), nil)
	c, p, term := newController(t, f, time.Hour)

	require.NoError(t, p.SaveTabs(context.Background(), persist.TabsState{Tabs: []string{mintX, mintY}, Active: mintY}))
	c.Hydrate(context.Background())

	active, ok := c.Active()
	assert.True(t, ok)
	assert.Equal(t, mintY, active)
	assert.Equal(t, []string{mintX, mintY}, c.Addresses())
	assert.Equal(t, mintY, term.Props().InitialInputMint)

	c.Hydrate(context.Background())
	f.AssertNumberOfCalls(t, "FetchTokenInfo", 2)
}

func TestHydrate_FallsBackToFirstLoaded(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchTokenInfo", mintX).Return(models.TokenRecord{}, jupiter.ErrNetwork)
	f.On("FetchTokenInfo", mintY).Return(record(mintY, "JUP", "0.5"), nil)
	f.On("FetchTokenInfo", mintZ).Return(models.TokenRecord{}, jupiter.ErrNotFound)
	c, p, _ := newController(t, f, time.Hour)

	require.NoError(t, p.SaveTabs(context.Background(), persist.TabsState{Tabs: []string{mintX, mintY, mintZ}, Active: mintZ}))
	c.Hydrate(context.Background())

	active, _ := c.Active()
	assert.Equal(t, mintY, active)
	assert.Equal(t, []string{mintY}, c.Addresses())

	state, err := p.LoadTabs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{mintY}, state.Tabs)
}

func TestHydrate_NothingLoads(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchTokenInfo", mintX).Return(models.TokenRecord{}, jupiter.ErrNotFound)
	c, p, term := newController(t, f, time.Hour)

	require.NoError(t, p.SaveTabs(context.Background(), persist.TabsState{Tabs: []string{mintX}, Active: mintX}))
	c.Hydrate(context.Background())

	_, ok := c.Active()
	assert.False(t, ok)
	assert.Empty(t, c.Tabs())
	assert.Equal(t, 0, term.Inits())
}

func TestSettings_AppliesAPIKey(t *testing.T) {
	f := new(MockFetcher)
	f.On("SetAPIKey", "").Return().Once()
	f.On("SetAPIKey", "secret").Return().Once()
	c, p, _ := newController(t, f, time.Hour)

	c.Hydrate(context.Background())
	assert.Equal(t, models.ThemeDark, c.Settings().Theme)

	require.NoError(t, c.UpdateSettings(context.Background(), models.UserSettings{APIKey: "secret", Theme: models.ThemeLight}))
	assert.Equal(t, "secret", c.Settings().APIKey)

	saved, err := p.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, saved.Theme)
	f.AssertExpectations(t)
}

func TestClose_ClosesSubscribers(t *testing.T) {
	f := new(MockFetcher)
	f.On("FetchTokenInfo", mintX).Return(record(mintX, "BONK", "1"), nil)
	c, _, _ := newController(t, f, time.Hour)
	sub := c.Subscribe()
	require.NoError(t, c.AddOrSelectToken(context.Background(), mintX))

	c.Close()
	c.Close()
	for range sub {
	}
	assert.True(t, errors.Is(c.SelectTab(mintX), ErrClosed))
}
