// Package session owns the open token tabs, the active tab and the price
// refresh task for it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"soltabs/pkg/format"
	"soltabs/pkg/metrics"
	"soltabs/pkg/models"
	"soltabs/pkg/persist"
	"soltabs/pkg/solana"
	"soltabs/pkg/widget"
)

const (
	DefaultRefreshInterval = 5 * time.Second
	DefaultHistorySize     = 120
)

var (
	ErrInvalidAddress = solana.ErrInvalidAddress
	ErrUnknownTab     = errors.New("no tab for address")
	ErrNotActive      = errors.New("tab is not active")
	ErrClosed         = errors.New("session closed")
)

// Fetcher resolves token metadata and prices.
type Fetcher interface {
	FetchTokenInfo(ctx context.Context, address string) (models.TokenRecord, error)
	FetchPriceOnly(ctx context.Context, address string) *models.PriceData
}

type apiKeySetter interface {
	SetAPIKey(key string)
}

// Persister saves the tab state and user settings.
type Persister interface {
	LoadTabs(ctx context.Context) (persist.TabsState, error)
	SaveTabs(ctx context.Context, state persist.TabsState) error
	LoadSettings(ctx context.Context) (models.UserSettings, error)
	SaveSettings(ctx context.Context, settings models.UserSettings) error
}

type Options struct {
	Fetcher         Fetcher
	Persister       Persister
	Terminal        widget.Terminal
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	RefreshInterval time.Duration
	HistorySize     int
	// FixedMint is the output side of the swap terminal. Defaults to WSOL.
	FixedMint string
}

// Controller is the single owner of session state for the process.
type Controller struct {
	fetcher   Fetcher
	persister Persister
	terminal  widget.Terminal
	metrics   *metrics.Metrics
	logger    *slog.Logger
	interval  time.Duration
	histSize  int
	fixedMint string

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	repo     *Repository
	active   string
	task     *refreshTask
	history  map[string][]models.PricePoint
	settings models.UserSettings
	hydrated bool
	closed   bool

	subMu       sync.RWMutex
	subscribers []Subscriber
}

// refreshTask polls the price of one address until its context is cancelled.
type refreshTask struct {
	address string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(opts Options) *Controller {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FixedMint == "" {
		opts.FixedMint = widget.WrappedSOLMint
	}
	if opts.Terminal == nil {
		opts.Terminal = widget.NewRecorder()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		fetcher:   opts.Fetcher,
		persister: opts.Persister,
		terminal:  opts.Terminal,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		interval:  opts.RefreshInterval,
		histSize:  opts.HistorySize,
		fixedMint: opts.FixedMint,
		baseCtx:   ctx,
		cancel:    cancel,
		repo:      NewRepository(),
		history:   make(map[string][]models.PricePoint),
		settings:  models.DefaultSettings(),
	}
}

// Start hydrates the session and closes it when ctx is done.
func (c *Controller) Start(ctx context.Context) {
	c.Hydrate(ctx)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.baseCtx.Done():
		}
	}()
}

// Close stops the refresh task and closes every subscriber.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	task := c.task
	c.stopTaskLocked()
	c.mu.Unlock()

	c.cancel()
	if task != nil {
		<-task.done
	}

	c.subMu.Lock()
	for _, sub := range c.subscribers {
		close(sub)
	}
	c.subscribers = nil
	c.subMu.Unlock()
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (c *Controller) Subscribe() Subscriber {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	ch := make(Subscriber, 100)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (c *Controller) Unsubscribe(ch Subscriber) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (c *Controller) notify(event Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, sub := range c.subscribers {
		select {
		case sub <- event:
		default:
			// slow subscriber, drop
		}
	}
}

// AddOrSelectToken selects addr if it is already open, otherwise resolves it
// and opens a new tab for it.
func (c *Controller) AddOrSelectToken(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if err := solana.ValidateMint(addr); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, ok := c.repo.Get(addr); ok {
		c.activateLocked(addr)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	rec, err := c.fetcher.FetchTokenInfo(ctx, addr)
	if err != nil {
		c.logger.Warn("token lookup failed", "address", addr, "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_, existed := c.repo.Get(addr)
	c.repo.Put(addr, rec)
	c.recordPriceLocked(addr, rec.PriceData)
	if !existed {
		snap := rec
		c.notify(Event{Type: EventTabAdded, Address: addr, Record: &snap, Tabs: c.repo.Addresses()})
	}
	c.activateLocked(addr)
	return nil
}

// SelectTab makes an open tab the active one.
func (c *Controller) SelectTab(addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.repo.Get(addr); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTab, addr)
	}
	c.activateLocked(addr)
	return nil
}

// CloseTab closes the active tab and selects the first remaining one.
func (c *Controller) CloseTab(addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.active == "" || c.active != addr {
		return fmt.Errorf("%w: %s", ErrNotActive, addr)
	}

	c.stopTaskLocked()
	c.repo.Remove(addr)
	delete(c.history, addr)
	c.active = ""
	c.notify(Event{Type: EventTabClosed, Address: addr, Tabs: c.repo.Addresses()})

	if c.repo.Len() > 0 {
		c.activateLocked(c.repo.Addresses()[0])
		return nil
	}
	c.saveTabsLocked()
	c.metrics.SetOpenTabs(0)
	c.notify(Event{Type: EventSessionCleared, Tabs: []string{}})
	return nil
}

// CloseActive closes the active tab, if any.
func (c *Controller) CloseActive() error {
	addr, ok := c.Active()
	if !ok {
		return ErrNotActive
	}
	return c.CloseTab(addr)
}

// Hydrate restores the saved tabs. Only the first call has an effect.
func (c *Controller) Hydrate(ctx context.Context) {
	c.mu.Lock()
	if c.hydrated || c.closed {
		c.mu.Unlock()
		return
	}
	c.hydrated = true
	c.mu.Unlock()

	c.loadSettings(ctx)

	var state persist.TabsState
	if c.persister != nil {
		var err error
		state, err = c.persister.LoadTabs(ctx)
		if err != nil {
			c.logger.Error("failed to load saved tabs", "error", err)
			c.metrics.IncPersistFailure()
			state = persist.TabsState{}
		}
	}
	if len(state.Tabs) == 0 {
		return
	}

	results := make([]*models.TokenRecord, len(state.Tabs))
	var wg sync.WaitGroup
	for i, addr := range state.Tabs {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			rec, err := c.fetcher.FetchTokenInfo(ctx, addr)
			if err != nil {
				c.logger.Debug("dropping saved tab", "address", addr, "error", err)
				return
			}
			results[i] = &rec
		}(i, addr)
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	loaded := 0
	first := ""
	for i, addr := range state.Tabs {
		if results[i] == nil {
			continue
		}
		if _, ok := c.repo.Get(addr); !ok {
			c.repo.Put(addr, *results[i])
			c.recordPriceLocked(addr, results[i].PriceData)
		}
		if first == "" {
			first = addr
		}
		loaded++
	}
	c.metrics.AddHydrated(loaded)
	c.logger.Info("restored tabs", "saved", len(state.Tabs), "loaded", loaded)

	target := first
	if _, ok := c.repo.Get(state.Active); ok && state.Active != "" {
		target = state.Active
	}
	if target != "" {
		c.activateLocked(target)
	}
}

func (c *Controller) loadSettings(ctx context.Context) {
	if c.persister == nil {
		return
	}
	settings, err := c.persister.LoadSettings(ctx)
	if err != nil {
		c.logger.Error("failed to load settings", "error", err)
		c.metrics.IncPersistFailure()
		settings = models.DefaultSettings()
	}
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
	c.applyAPIKey(settings.APIKey)
}

func (c *Controller) applyAPIKey(key string) {
	if ks, ok := c.fetcher.(apiKeySetter); ok {
		ks.SetAPIKey(key)
	}
}

func (c *Controller) Settings() models.UserSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings saves the settings and applies the API key to the fetcher.
func (c *Controller) UpdateSettings(ctx context.Context, settings models.UserSettings) error {
	if settings.Theme != models.ThemeLight {
		settings.Theme = models.ThemeDark
	}
	if c.persister != nil {
		if err := c.persister.SaveSettings(ctx, settings); err != nil {
			c.logger.Error("failed to save settings", "error", err)
			c.metrics.IncPersistFailure()
			return err
		}
	}
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
	c.applyAPIKey(settings.APIKey)
	return nil
}

// Active returns the active address.
func (c *Controller) Active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != ""
}

// ActiveRecord returns a snapshot of the active token.
func (c *Controller) ActiveRecord() (models.TokenRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == "" {
		return models.TokenRecord{}, false
	}
	return c.repo.Get(c.active)
}

func (c *Controller) Record(addr string) (models.TokenRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repo.Get(addr)
}

// Tabs returns the open tokens in tab order.
func (c *Controller) Tabs() []models.TokenRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repo.Records()
}

func (c *Controller) Addresses() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repo.Addresses()
}

// SwapProps returns the swap terminal configuration for addr. An empty addr
// gives the props used when no tab is active.
func (c *Controller) SwapProps(addr string) widget.SwapProps {
	return widget.NewSwapProps(addr, c.fixedMint)
}

// History returns the price samples collected for addr, oldest first.
func (c *Controller) History(addr string) []models.PricePoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.history[addr]
	out := make([]models.PricePoint, len(h))
	copy(out, h)
	return out
}

func (c *Controller) activateLocked(addr string) {
	c.stopTaskLocked()
	c.active = addr
	c.saveTabsLocked()
	c.metrics.SetOpenTabs(c.repo.Len())

	rec, _ := c.repo.Get(addr)
	c.notify(Event{Type: EventActiveChanged, Address: addr, Record: &rec, Tabs: c.repo.Addresses()})
	c.terminal.Init(c.SwapProps(addr))
	c.startTaskLocked(addr)
}

func (c *Controller) saveTabsLocked() {
	if c.persister == nil {
		return
	}
	state := persist.TabsState{Tabs: c.repo.Addresses(), Active: c.active}
	if err := c.persister.SaveTabs(c.baseCtx, state); err != nil {
		c.logger.Error("failed to save tabs", "error", err)
		c.metrics.IncPersistFailure()
	}
}

func (c *Controller) recordPriceLocked(addr string, pd *models.PriceData) {
	v, ok := format.PriceValue(pd)
	if !ok {
		return
	}
	h := append(c.history[addr], models.PricePoint{Timestamp: time.Now(), Value: v})
	if len(h) > c.histSize {
		h = h[len(h)-c.histSize:]
	}
	c.history[addr] = h
}

func (c *Controller) startTaskLocked(addr string) {
	ctx, cancel := context.WithCancel(c.baseCtx)
	t := &refreshTask{address: addr, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	c.task = t
	go c.runRefresh(t)
}

// stopTaskLocked cancels the current task without waiting for it. A fetch
// still in flight is discarded when it completes.
func (c *Controller) stopTaskLocked() {
	if c.task == nil {
		return
	}
	c.task.cancel()
	c.task = nil
}

func (c *Controller) runRefresh(t *refreshTask) {
	defer close(t.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.refreshOnce(t)
		case <-t.ctx.Done():
			return
		}
	}
}

func (c *Controller) refreshOnce(t *refreshTask) {
	c.metrics.IncRefreshTick()
	pd := c.fetcher.FetchPriceOnly(t.ctx, t.address)
	if pd == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.task != t && c.task != nil && c.task.address == t.address {
		// A newer task owns this address; its results win.
		c.metrics.IncStaleRefresh()
		return
	}
	if !c.repo.PatchPrice(t.address, pd) {
		return
	}
	c.recordPriceLocked(t.address, pd)
	if c.task != t || c.active != t.address {
		c.metrics.IncStaleRefresh()
		c.logger.Debug("discarding stale price", "address", t.address)
		return
	}
	rec, _ := c.repo.Get(t.address)
	c.notify(Event{Type: EventPriceUpdated, Address: t.address, Record: &rec, Tabs: c.repo.Addresses()})
}
