package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"soltabs/pkg/config"
	"soltabs/pkg/models"
	"soltabs/pkg/persist"
	"soltabs/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bonk = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	jup  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// newTokenAPI answers for bonk and usdc and 404s every other mint.
func newTokenAPI(t *testing.T) *httptest.Server {
	t.Helper()
	known := map[string]string{bonk: "Bonk", usdc: "USDC"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/tokens/v1/token/"):
			addr := strings.TrimPrefix(r.URL.Path, "/tokens/v1/token/")
			sym, ok := known[addr]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(`{"address":"` + addr + `","symbol":"` + sym + `","name":"` + sym + `"}`))
		case r.URL.Path == "/price/v2":
			id := r.URL.Query().Get("ids")
			_, _ = w.Write([]byte(`{"data":{"` + id + `":{"id":"` + id + `","price":"1.5"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	dir        string
	configPath string
	statePath  string
}

func newFixture(t *testing.T, baseURL string) fixture {
	t.Helper()
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvStoreBackend, "")
	t.Setenv(config.EnvLogLevel, "")

	dir := t.TempDir()
	f := fixture{
		dir:        dir,
		configPath: filepath.Join(dir, "soltabs.yaml"),
		statePath:  filepath.Join(dir, "state.json"),
	}
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.Store.Backend = store.BackendFile
	cfg.Store.Path = f.statePath
	cfg.Log.File = filepath.Join(dir, "soltabs.log")
	require.NoError(t, config.SaveConfig(cfg, f.configPath))
	return f
}

func (f fixture) seed(t *testing.T, state persist.TabsState) {
	t.Helper()
	s, err := store.Open(store.BackendFile, f.statePath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, persist.New(s).SaveTabs(context.Background(), state))
}

func (f fixture) state(t *testing.T) persist.TabsState {
	t.Helper()
	s, err := store.Open(store.BackendFile, f.statePath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	st, err := persist.New(s).LoadTabs(context.Background())
	require.NoError(t, err)
	return st
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckReportsTabs(t *testing.T) {
	api := newTokenAPI(t)
	f := newFixture(t, api.URL)
	f.seed(t, persist.TabsState{Tabs: []string{bonk, jup, usdc}, Active: jup})

	out, err := run(t, "--config", f.configPath, "check", "--json")
	require.NoError(t, err)

	var report models.CheckReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.ValidStructure)
	assert.True(t, report.APIReachable)
	assert.Equal(t, 3, report.TabCount)
	require.Len(t, report.Tabs, 3)
	assert.Equal(t, "ok", report.Tabs[0].Status)
	assert.Equal(t, "Bonk", report.Tabs[0].Symbol)
	assert.Equal(t, "1.5", report.Tabs[0].Price)
	assert.Equal(t, "not_found", report.Tabs[1].Status)
	assert.False(t, report.Tabs[1].Pruned)
	assert.False(t, report.StateUpdated)

	assert.Equal(t, []string{bonk, jup, usdc}, f.state(t).Tabs)
}

func TestCheckPrunesUnknownTabs(t *testing.T) {
	api := newTokenAPI(t)
	f := newFixture(t, api.URL)
	f.seed(t, persist.TabsState{Tabs: []string{bonk, jup, usdc}, Active: jup})

	out, err := run(t, "--config", f.configPath, "check", "--prune")
	require.NoError(t, err)
	assert.Contains(t, out, "NOT FOUND - PRUNED")
	assert.Contains(t, out, "Tabs saved successfully.")

	st := f.state(t)
	assert.Equal(t, []string{bonk, usdc}, st.Tabs)
	assert.Equal(t, bonk, st.Active)
}

func TestCheckPruneDryRun(t *testing.T) {
	api := newTokenAPI(t)
	f := newFixture(t, api.URL)
	f.seed(t, persist.TabsState{Tabs: []string{bonk, jup}, Active: bonk})

	out, err := run(t, "--config", f.configPath, "check", "--prune", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "(DRY RUN)")
	assert.Contains(t, out, "tabs NOT saved")
	assert.Equal(t, []string{bonk, jup}, f.state(t).Tabs)
}

func TestCheckInvalidConfig(t *testing.T) {
	api := newTokenAPI(t)
	f := newFixture(t, api.URL)
	require.NoError(t, os.WriteFile(f.configPath, []byte("store:\n  backend: floppy\nrefresh:\n  interval_seconds: 0\n"), 0600))

	out, err := run(t, "--config", f.configPath, "check", "--json")
	require.Error(t, err)

	var report models.CheckReport
	require.NoError(t, json.Unmarshal([]byte(strings.SplitN(out, "Error:", 2)[0]), &report))
	assert.False(t, report.ValidStructure)
	assert.Len(t, report.StructureErrors, 2)
}

func TestRuntimeStartsOnCorruptState(t *testing.T) {
	api := newTokenAPI(t)
	f := newFixture(t, api.URL)
	require.NoError(t, os.WriteFile(f.statePath, []byte("{not json"), 0600))

	rt, err := newRuntime(f.configPath, runtimeOptions{})
	require.NoError(t, err)
	defer rt.Close()

	rt.session.Hydrate(context.Background())
	_, ok := rt.session.Active()
	assert.False(t, ok)
	assert.Empty(t, rt.session.Tabs())

	matches, err := filepath.Glob(f.statePath + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	require.NoError(t, rt.session.AddOrSelectToken(context.Background(), bonk))
	assert.Equal(t, []string{bonk}, f.state(t).Tabs)
}

func TestRuntimeUsesConfiguredFixedMint(t *testing.T) {
	api := newTokenAPI(t)
	f := newFixture(t, api.URL)
	cfg, _, err := loadConfig(f.configPath)
	require.NoError(t, err)
	cfg.Swap.FixedMint = usdc
	require.NoError(t, config.SaveConfig(cfg, f.configPath))

	rt, err := newRuntime(f.configPath, runtimeOptions{})
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.session.AddOrSelectToken(context.Background(), bonk))
	assert.Equal(t, usdc, rt.terminal.Props().FixedMint)
}

func TestTabsListsActive(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")
	f.seed(t, persist.TabsState{Tabs: []string{bonk, usdc}, Active: usdc})

	out, err := run(t, "--config", f.configPath, "tabs")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "  1"))
	assert.True(t, strings.HasPrefix(lines[1], "* 2"))
	assert.Contains(t, lines[1], usdc)
}

func TestTabsEmpty(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")
	out, err := run(t, "--config", f.configPath, "tabs")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved tabs.")
}

func TestSettingsUpdate(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")

	out, err := run(t, "--config", f.configPath, "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "(not set)")
	assert.Contains(t, out, "dark")

	out, err = run(t, "--config", f.configPath, "settings", "--api-key", "secret-1234", "--theme", "LIGHT")
	require.NoError(t, err)
	assert.Contains(t, out, "****1234")
	assert.Contains(t, out, "light")

	out, err = run(t, "--config", f.configPath, "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "****1234")
	assert.NotContains(t, out, "secret")

	_, err = run(t, "--config", f.configPath, "settings", "--theme", "sepia")
	assert.Error(t, err)
}

func TestConfigInitAndRestore(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "soltabs.yaml")

	out, err := run(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	original, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = run(t, "--config", path, "config", "init")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	out, err = run(t, "--config", path, "config", "restore")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")

	restored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(restored))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "soltabs version test\n", out)
}
