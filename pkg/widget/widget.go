// Package widget builds the configuration handed to the external swap
// terminal and chart views.
package widget

import (
	"fmt"
	"net/url"
	"sync"

	"soltabs/pkg/solana"
)

const (
	WrappedSOLMint = solana.WrappedSOLMint
	// DefaultInputMint is the swap input when no token is active.
	DefaultInputMint = "3S8qX1MsMqRbiwKg2cQyx7nis1oHMgaCuc9c4VfvVdPN"

	DisplayModeIntegrated = "integrated"
	IntegratedTargetID    = "integrated-terminal"
	DefaultExplorer       = "Solscan"
)

var (
	ChartBaseURL = "https://birdeye.so/tv-widget/"
	SwapBaseURL  = "https://jup.ag/swap/"
)

// SwapProps is the init payload of the swap terminal.
type SwapProps struct {
	DisplayMode        string `json:"displayMode"`
	IntegratedTargetID string `json:"integratedTargetId"`
	DefaultExplorer    string `json:"defaultExplorer"`
	InitialInputMint   string `json:"initialInputMint"`
	FixedMint          string `json:"fixedMint"`
}

// DefaultSwapProps returns props with the given input mint paired against WSOL.
func DefaultSwapProps(inputMint string) SwapProps {
	return NewSwapProps(inputMint, WrappedSOLMint)
}

// NewSwapProps pairs inputMint against fixedMint. Empty mints fall back to
// DefaultInputMint and WSOL.
func NewSwapProps(inputMint, fixedMint string) SwapProps {
	if inputMint == "" {
		inputMint = DefaultInputMint
	}
	if fixedMint == "" {
		fixedMint = WrappedSOLMint
	}
	return SwapProps{
		DisplayMode:        DisplayModeIntegrated,
		IntegratedTargetID: IntegratedTargetID,
		DefaultExplorer:    DefaultExplorer,
		InitialInputMint:   inputMint,
		FixedMint:          fixedMint,
	}
}

// URL opens the same pair on the swap site.
func (p SwapProps) URL() string {
	return SwapURL(p.InitialInputMint, p.FixedMint)
}

// Terminal receives the swap configuration each time the active token changes.
type Terminal interface {
	Init(props SwapProps)
}

// Recorder is a Terminal that keeps the latest props.
type Recorder struct {
	mu    sync.RWMutex
	props SwapProps
	count int
}

func NewRecorder() *Recorder {
	return &Recorder{props: DefaultSwapProps("")}
}

func (r *Recorder) Init(props SwapProps) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props = props
	r.count++
}

func (r *Recorder) Props() SwapProps {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.props
}

// Inits reports how many times Init was called.
func (r *Recorder) Inits() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

type ChartOptions struct {
	Interval string
	Timezone string
	Theme    string
}

func DefaultChartOptions() ChartOptions {
	return ChartOptions{Interval: "15", Timezone: "Europe/Zagreb", Theme: "dark"}
}

// ChartURL returns the candle chart for addr. An empty address charts WSOL.
func ChartURL(addr string, opts ChartOptions) string {
	if addr == "" {
		addr = WrappedSOLMint
	}
	def := DefaultChartOptions()
	if opts.Interval == "" {
		opts.Interval = def.Interval
	}
	if opts.Timezone == "" {
		opts.Timezone = def.Timezone
	}
	if opts.Theme == "" {
		opts.Theme = def.Theme
	}
	// Parameter order is fixed so URLs are comparable.
	return fmt.Sprintf("%s%s?chain=solana&viewMode=pair&chartInterval=%s&chartType=Candle&chartTimezone=%s&chartLeftToolbar=show&theme=%s",
		ChartBaseURL, url.PathEscape(addr), url.QueryEscape(opts.Interval), url.QueryEscape(opts.Timezone), url.QueryEscape(opts.Theme))
}

func SwapURL(input, output string) string {
	if input == "" {
		input = DefaultInputMint
	}
	if output == "" {
		output = WrappedSOLMint
	}
	return SwapBaseURL + url.PathEscape(input) + "-" + url.PathEscape(output)
}
