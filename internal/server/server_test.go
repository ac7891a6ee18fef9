package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cxd309/vehicle-emulator/internal/config"
	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(vehicle.DefaultParams(), 8)
	require.NoError(t, err)
	return s
}

func TestSessionStepsOnWholeTicks(t *testing.T) {
	s := newSession(t)
	_, ok := s.Advance(0.0625)
	assert.False(t, ok)

	require.NoError(t, s.SetInput(input.Up, 1))
	frame, ok := s.Advance(0.1875)
	require.True(t, ok)
	assert.Equal(t, "frame", frame.Type)
	assert.Equal(t, s.ID(), frame.Session)
	assert.Equal(t, 0.25, frame.Time)
	assert.Greater(t, frame.Speed, 0.0)
	assert.Equal(t, 1.0, frame.Inputs.Value(input.Up))
}

func TestSessionKeyRampAndOverrides(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Key(input.Up, true))
	require.NoError(t, s.Key(input.Left, true))
	frame, ok := s.Advance(0.5)
	require.True(t, ok)
	assert.InDelta(t, 0.5, frame.Inputs.Value(input.Up), 1e-9)
	assert.True(t, frame.Inputs.Has(input.Left))

	// a direct right input replaces the ramp's left steering
	require.NoError(t, s.SetInput(input.Right, 0.5))
	frame, ok = s.Advance(0.125)
	require.True(t, ok)
	assert.False(t, frame.Inputs.Has(input.Left))
	assert.Equal(t, 0.5, frame.Inputs.Value(input.Right))

	require.NoError(t, s.SetInput(input.Right, 0))
	require.NoError(t, s.SetAxes(0, -1))
	frame, ok = s.Advance(0.125)
	require.True(t, ok)
	assert.Equal(t, 1.0, frame.Inputs.Value(input.Up))

	require.NoError(t, s.Reset())
	snap := s.Snapshot()
	assert.Zero(t, snap.Speed)
	assert.Equal(t, vehicle.DefaultParams().CenterOfMass, snap.Pose.Position)
}

func TestClosedSessionRejectsInput(t *testing.T) {
	s := newSession(t)
	s.Close()
	assert.ErrorIs(t, s.SetInput(input.Up, 1), ErrSessionClosed)
	assert.ErrorIs(t, s.Key(input.Up, true), ErrSessionClosed)
	assert.ErrorIs(t, s.SetAxes(0, 0), ErrSessionClosed)
	assert.ErrorIs(t, s.Reset(), ErrSessionClosed)
	_, ok := s.Advance(1)
	assert.False(t, ok)
}

func TestNewValidatesRates(t *testing.T) {
	_, err := New(config.ServerConfig{TickRate: 0, BroadcastRate: 10}, vehicle.DefaultParams(), nil)
	assert.Error(t, err)
	_, err = New(config.ServerConfig{TickRate: 60, BroadcastRate: 0}, vehicle.DefaultParams(), nil)
	assert.Error(t, err)
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestLiveSessionOverWebsocket(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, err := New(config.ServerConfig{TickRate: 100, BroadcastRate: 50}, vehicle.DefaultParams(), zaptest.NewLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, srv.Session().ID(), health["session"])

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readUntil(t, conn, func(map[string]any) bool { return true })
	assert.Equal(t, "frame", first["type"])
	assert.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(Message{Type: "input", Channel: "up", Value: 1}))
	moving := readUntil(t, conn, func(m map[string]any) bool {
		speed, _ := m["speed"].(float64)
		return m["type"] == "frame" && speed > 1
	})
	assert.Equal(t, srv.Session().ID(), moving["session"])

	require.NoError(t, conn.WriteJSON(Message{Type: "warp"}))
	rejected := readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "error" })
	assert.Contains(t, rejected["error"], "unknown message type")

	require.NoError(t, conn.WriteJSON(Message{Type: "key", Key: "sideways", Down: true}))
	rejected = readUntil(t, conn, func(m map[string]any) bool { return m["type"] == "error" })
	assert.Contains(t, rejected["error"], "unknown input channel")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, srv.Shutdown(shutdownCtx))
	assert.Zero(t, srv.Hub().Clients())

	// the hub closes the connection from its side
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.ErrorIs(t, srv.Session().SetInput(input.Up, 1), ErrSessionClosed)
}
