package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gr-butler/lorastation/metrics"
	"github.com/gr-butler/lorastation/packet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	healthy bool
	latest  *packet.Packet
}

func (f *fakeStatus) Healthy() bool {
	return f.healthy
}

func (f *fakeStatus) Latest() (packet.Packet, bool) {
	if f.latest == nil {
		return packet.Packet{}, false
	}
	return *f.latest, true
}

func serve(t *testing.T, st status) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.FrameReceived()
	ws := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusTeapot)
	})
	srv := httptest.NewServer(newMux(st, reg, ws))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	st := &fakeStatus{healthy: true}
	srv := serve(t, st)

	code, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	st.healthy = false
	code, _ = get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestLatest(t *testing.T) {
	st := &fakeStatus{healthy: true}
	srv := serve(t, st)

	_, body := get(t, srv.URL+"/latest")
	var empty map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &empty))
	assert.Nil(t, empty["packet"])
	assert.Equal(t, true, empty["healthy"])

	st.latest = &packet.Packet{
		Temperature:  15,
		Pressure:     101325,
		PacketNumber: 7,
		FlightNumber: 2,
		Valid:        true,
		Altitude:     0,
		ReceivedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	_, body = get(t, srv.URL+"/latest")
	var got struct {
		Packet map[string]interface{} `json:"packet"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, 7.0, got.Packet["packet_number"])
	assert.Equal(t, 2.0, got.Packet["flight_number"])
	assert.Equal(t, true, got.Packet["valid"])
}

func TestMetricsAndWebsocketRoutes(t *testing.T) {
	srv := serve(t, &fakeStatus{})

	code, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "lorastation_frames_received_total 1")

	code, _ = get(t, srv.URL+"/ws")
	assert.Equal(t, http.StatusTeapot, code)
}
