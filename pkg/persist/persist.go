// Package persist stores the tab state and user settings in a key-value store
// under the same keys the browser version used.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"soltabs/pkg/models"
	"soltabs/pkg/store"
)

const (
	KeyTabs     = "solanaTokenTabs"
	KeyActive   = "activeTokenTab"
	KeySettings = "userSettings"
)

// ErrPersistence wraps every storage or encoding failure.
var ErrPersistence = errors.New("persistence error")

// TabsState is the persisted tab order and the active tab.
type TabsState struct {
	Tabs   []string `json:"tabs"`
	Active string   `json:"active,omitempty"`
}

// Adapter reads and writes session state. Last write wins.
type Adapter struct {
	store store.Store
}

func New(s store.Store) *Adapter {
	return &Adapter{store: s}
}

// LoadTabs returns the saved tab state. Nothing saved yields an empty state.
func (a *Adapter) LoadTabs(ctx context.Context) (TabsState, error) {
	var state TabsState
	raw, ok, err := a.store.Get(ctx, KeyTabs)
	if err != nil {
		return TabsState{}, fmt.Errorf("%w: read %s: %v", ErrPersistence, KeyTabs, err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &state.Tabs); err != nil {
			return TabsState{}, fmt.Errorf("%w: decode %s: %v", ErrPersistence, KeyTabs, err)
		}
	}
	state.Tabs = dedupe(state.Tabs)

	active, ok, err := a.store.Get(ctx, KeyActive)
	if err != nil {
		return TabsState{}, fmt.Errorf("%w: read %s: %v", ErrPersistence, KeyActive, err)
	}
	if ok {
		state.Active = strings.TrimSpace(active)
	}
	return state, nil
}

// SaveTabs writes the tab order. An empty Active leaves the stored active tab as is.
func (a *Adapter) SaveTabs(ctx context.Context, state TabsState) error {
	tabs := state.Tabs
	if tabs == nil {
		tabs = []string{}
	}
	data, err := json.Marshal(tabs)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, KeyTabs, err)
	}
	if err := a.store.Set(ctx, KeyTabs, string(data)); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, KeyTabs, err)
	}
	if state.Active != "" {
		if err := a.store.Set(ctx, KeyActive, state.Active); err != nil {
			return fmt.Errorf("%w: write %s: %v", ErrPersistence, KeyActive, err)
		}
	}
	return nil
}

// LoadSettings returns the saved settings with defaults for missing fields.
func (a *Adapter) LoadSettings(ctx context.Context) (models.UserSettings, error) {
	settings := models.DefaultSettings()
	raw, ok, err := a.store.Get(ctx, KeySettings)
	if err != nil {
		return settings, fmt.Errorf("%w: read %s: %v", ErrPersistence, KeySettings, err)
	}
	if !ok || raw == "" {
		return settings, nil
	}
	var saved models.UserSettings
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return settings, fmt.Errorf("%w: decode %s: %v", ErrPersistence, KeySettings, err)
	}
	settings.APIKey = saved.APIKey
	if saved.Theme == models.ThemeLight || saved.Theme == models.ThemeDark {
		settings.Theme = saved.Theme
	}
	return settings, nil
}

func (a *Adapter) SaveSettings(ctx context.Context, settings models.UserSettings) error {
	if settings.Theme != models.ThemeLight {
		settings.Theme = models.ThemeDark
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, KeySettings, err)
	}
	if err := a.store.Set(ctx, KeySettings, string(data)); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, KeySettings, err)
	}
	return nil
}

func dedupe(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
