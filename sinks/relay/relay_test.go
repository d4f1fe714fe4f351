package relay

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gr-butler/lorastation/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() packet.Packet {
	return packet.Packet{
		Temperature: 12.5, Pressure: 95000, BatteryVoltage: 3.5,
		PacketNumber: 8, FlightNumber: 2, Altitude: 540, Valid: true,
		ReceivedAt: time.Date(2011, 2, 28, 10, 32, 55, 0, time.UTC),
	}
}

func TestValues(t *testing.T) {
	r := New(Config{StationID: "123", AuthKey: "4567", SoftwareType: "lorastation"})
	q, err := r.Values(sample())
	require.NoError(t, err)

	vals, err := url.ParseQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "123", vals.Get("siteid"))
	assert.Equal(t, "4567", vals.Get("siteAuthenticationKey"))
	assert.Equal(t, "2011-02-28 10:32:55", vals.Get("dateutc"))
	assert.Equal(t, "2", vals.Get("flight"))
	assert.Equal(t, "8", vals.Get("packet"))
	assert.Equal(t, "12.5", vals.Get("tempc"))
	assert.Equal(t, "95000", vals.Get("pressurepa"))
	assert.Equal(t, "540", vals.Get("altm"))
}

func TestValuesOmitsNaN(t *testing.T) {
	p := sample()
	p.Altitude = math.NaN()
	q, err := New(Config{}).Values(p)
	require.NoError(t, err)
	vals, _ := url.ParseQuery(q)
	_, ok := vals["altm"]
	assert.False(t, ok)
}

func TestConsume(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
	}))
	defer srv.Close()

	r := New(Config{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, r.Consume(context.Background(), sample()))
	assert.Equal(t, "8", got.Get("packet"))

	// invalid packets never leave the station
	got = nil
	p := sample()
	p.Valid = false
	require.NoError(t, r.Consume(context.Background(), p))
	assert.Nil(t, got)
}

func TestConsumeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := New(Config{URL: srv.URL}).Consume(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
