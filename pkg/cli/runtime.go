package cli

import (
	"fmt"
	"log/slog"

	"soltabs/pkg/config"
	"soltabs/pkg/jupiter"
	"soltabs/pkg/logging"
	"soltabs/pkg/metrics"
	"soltabs/pkg/persist"
	"soltabs/pkg/session"
	"soltabs/pkg/store"
	"soltabs/pkg/widget"
)

// runtime wires the long-lived components for one process.
type runtime struct {
	cfg        config.Config
	configPath string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	store      store.Store
	persist    *persist.Adapter
	client     *jupiter.Client
	terminal   *widget.Recorder
	session    *session.Controller

	closeLog func() error
}

type runtimeOptions struct {
	// logToFile sends logs to the configured file instead of stderr.
	logToFile bool
	ephemeral bool
}

func loadConfig(customPath string) (config.Config, string, error) {
	path, err := config.GetConfigPath(customPath)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("error determining config path: %w", err)
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("error loading config from %s: %w", path, err)
	}
	return cfg, path, nil
}

func openStore(cfg config.Config, ephemeral bool) (store.Store, string, error) {
	if ephemeral || cfg.Store.Backend == store.BackendMemory {
		return store.NewMemoryStore(), "", nil
	}
	path, err := cfg.StorePath()
	if err != nil {
		return nil, "", err
	}
	s, err := store.Open(cfg.Store.Backend, path)
	return s, path, err
}

// recoveredState returns the decode error if the store had to discard its file.
func recoveredState(s store.Store) (string, error) {
	if r, ok := s.(store.Recoverer); ok {
		return r.Recovered()
	}
	return "", nil
}

func newClient(cfg config.Config, m *metrics.Metrics, logger *slog.Logger) *jupiter.Client {
	opts := []jupiter.Option{
		jupiter.WithTimeout(cfg.Timeout()),
		jupiter.WithAPIKey(cfg.API.APIKey),
		jupiter.WithMetrics(m),
		jupiter.WithLogger(logger),
	}
	if cfg.API.BaseURL != "" {
		opts = append(opts, jupiter.WithBaseURL(cfg.API.BaseURL))
	}
	return jupiter.NewClient(opts...)
}

func newRuntime(customPath string, opts runtimeOptions) (*runtime, error) {
	cfg, path, err := loadConfig(customPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	logPath := ""
	if opts.logToFile {
		if logPath, err = cfg.LogPath(); err != nil {
			return nil, err
		}
	}
	logger, closeLog, err := logging.Setup(logPath, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	s, storePath, err := openStore(cfg, opts.ephemeral)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	logger.Info("store opened", "backend", cfg.Store.Backend, "path", storePath)
	if aside, err := recoveredState(s); err != nil {
		logger.Error("saved state was unreadable, starting empty", "moved_to", aside, "error", err)
	}

	m := metrics.New()
	client := newClient(cfg, m, logger)
	adapter := persist.New(s)
	term := widget.NewRecorder()

	c := session.New(session.Options{
		Fetcher:         client,
		Persister:       adapter,
		Terminal:        term,
		Metrics:         m,
		Logger:          logger,
		RefreshInterval: cfg.RefreshInterval(),
		FixedMint:       cfg.Swap.FixedMint,
	})

	return &runtime{
		cfg:        cfg,
		configPath: path,
		logger:     logger,
		metrics:    m,
		store:      s,
		persist:    adapter,
		client:     client,
		terminal:   term,
		session:    c,
		closeLog:   closeLog,
	}, nil
}

func (r *runtime) chartOptions() widget.ChartOptions {
	return widget.ChartOptions{
		Interval: r.cfg.Chart.Interval,
		Timezone: r.cfg.Chart.Timezone,
		Theme:    r.cfg.Chart.Theme,
	}
}

func (r *runtime) Close() {
	r.session.Close()
	if err := r.store.Close(); err != nil {
		r.logger.Error("failed to close store", "error", err)
	}
	_ = r.closeLog()
}
