package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"soltabs/pkg/jupiter"
	"soltabs/pkg/metrics"
	"soltabs/pkg/models"
	"soltabs/pkg/session"
	"soltabs/pkg/widget"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bonk = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	jup  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type stubFetcher struct{}

func (stubFetcher) FetchTokenInfo(ctx context.Context, address string) (models.TokenRecord, error) {
	switch address {
	case bonk:
		return models.TokenRecord{Address: bonk, Name: "Bonk", Symbol: "BONK", PriceData: &models.PriceData{Price: "0.00002"}}, nil
	case jup:
		return models.TokenRecord{Address: jup, Name: "Jupiter", Symbol: "JUP"}, nil
	case usdc:
		return models.TokenRecord{}, jupiter.ErrNetwork
	}
	return models.TokenRecord{}, jupiter.ErrNotFound
}

func (stubFetcher) FetchPriceOnly(ctx context.Context, address string) *models.PriceData {
	return nil
}

func newTestServer(t *testing.T) (*Server, *session.Controller) {
	t.Helper()
	c := session.New(session.Options{Fetcher: stubFetcher{}, RefreshInterval: time.Hour})
	t.Cleanup(c.Close)
	return NewServer(c, metrics.New(), widget.DefaultChartOptions(), nil), c
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(s, http.MethodGet, "/api/status")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Contains(t, resp, "tabs")
	assert.Contains(t, resp, "swap")
	assert.Contains(t, resp["chart"], widget.WrappedSOLMint)
}

func TestHandleStatus_FixedMint(t *testing.T) {
	c := session.New(session.Options{Fetcher: stubFetcher{}, RefreshInterval: time.Hour, FixedMint: usdc})
	t.Cleanup(c.Close)
	s := NewServer(c, metrics.New(), widget.DefaultChartOptions(), nil)
	require.NoError(t, c.AddOrSelectToken(context.Background(), bonk))

	rr := do(s, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, bonk, resp.Swap.InitialInputMint)
	assert.Equal(t, usdc, resp.Swap.FixedMint)
}

func TestTokenLifecycle(t *testing.T) {
	s, c := newTestServer(t)

	rr := do(s, http.MethodPost, "/api/tokens/"+bonk)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(s, http.MethodPost, "/api/tokens/"+jup)
	require.Equal(t, http.StatusOK, rr.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, jup, status.Active)
	assert.Len(t, status.Tabs, 2)
	assert.Equal(t, "0.00002", status.Tabs[0].Price)
	assert.Equal(t, "N/A", status.Tabs[1].Price)
	assert.Equal(t, jup, status.Swap.InitialInputMint)

	rr = do(s, http.MethodPost, "/api/tokens/"+bonk+"/select")
	require.Equal(t, http.StatusOK, rr.Code)
	active, _ := c.Active()
	assert.Equal(t, bonk, active)

	rr = do(s, http.MethodGet, "/api/chart")
	assert.Contains(t, rr.Body.String(), bonk)

	rr = do(s, http.MethodGet, "/api/tokens/"+bonk)
	require.Equal(t, http.StatusOK, rr.Code)
	var token tokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &token))
	assert.Equal(t, "BONK", token.Record.Symbol)
	assert.NotEmpty(t, token.Details)

	rr = do(s, http.MethodDelete, "/api/tokens/active")
	require.Equal(t, http.StatusOK, rr.Code)
	active, _ = c.Active()
	assert.Equal(t, jup, active)
}

func TestErrorStatus(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodPost, "/api/tokens/not-a-mint", http.StatusBadRequest},
		{http.MethodPost, "/api/tokens/So11111111111111111111111111111111111111112", http.StatusNotFound},
		{http.MethodPost, "/api/tokens/" + usdc, http.StatusBadGateway},
		{http.MethodPost, "/api/tokens/" + bonk + "/select", http.StatusNotFound},
		{http.MethodGet, "/api/tokens/" + bonk, http.StatusNotFound},
		{http.MethodDelete, "/api/tokens/active", http.StatusConflict},
	}
	for _, tt := range tests {
		rr := do(s, tt.method, tt.path)
		assert.Equal(t, tt.code, rr.Code, tt.method+" "+tt.path)
		assert.Contains(t, rr.Body.String(), "error")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	do(s, http.MethodPost, "/api/tokens/"+bonk)

	rr := do(s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "soltabs_session_open_tabs")
}

func TestHandleWS(t *testing.T) {
	s, c := newTestServer(t)
	go s.listenToSession(c.Subscribe())
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	// Read initial state
	var msg map[string]interface{}
	err = ws.ReadJSON(&msg)
	assert.NoError(t, err)
	assert.Equal(t, "initial", msg["type"])

	require.NoError(t, c.AddOrSelectToken(context.Background(), bonk))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev session.Event
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, session.EventTabAdded, ev.Type)
	assert.Equal(t, bonk, ev.Address)
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, session.EventActiveChanged, ev.Type)
}
