package metrics

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gr-butler/lorastation/packet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.FrameReceived()
	m.FrameReceived()
	m.FrameMalformed()
	m.PacketDecoded(packet.Packet{Valid: true})
	m.PacketDecoded(packet.Packet{Valid: false})
	m.PacketDecoded(packet.Packet{Valid: true})
	m.LinkError()
	m.LinkQuality(0.25, false)
	m.ConsumerDropped("ws")
	m.ConsumerDropped("ws")
	m.ConsumerFailed("store", errors.New("connection refused"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesMalformed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PacketsDecoded.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsDecoded.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LinkHealthy))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.InvalidRatio))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConsumerDrops.WithLabelValues("ws")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConsumerErrors.WithLabelValues("store")))
}

func TestConsumeSetsGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ctx := context.Background()

	require.NoError(t, m.Consume(ctx, packet.Packet{
		Temperature: -12.5, Pressure: 54000, BatteryVoltage: 3.5, PacketNumber: 42, Altitude: 4900, Valid: true,
	}))
	assert.Equal(t, -12.5, testutil.ToFloat64(m.Temperature))
	assert.Equal(t, 54000.0, testutil.ToFloat64(m.Pressure))
	assert.Equal(t, 3.5, testutil.ToFloat64(m.BatteryVoltage))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.PacketNumber))
	assert.Equal(t, 4900.0, testutil.ToFloat64(m.Altitude))

	// corrupted packets are ignored
	require.NoError(t, m.Consume(ctx, packet.Packet{Temperature: 999, Valid: false}))
	assert.Equal(t, -12.5, testutil.ToFloat64(m.Temperature))

	// NaN altitude keeps the last good value
	require.NoError(t, m.Consume(ctx, packet.Packet{Pressure: 0, Altitude: math.NaN(), PacketNumber: 43, Valid: true}))
	assert.Equal(t, 4900.0, testutil.ToFloat64(m.Altitude))
	assert.Equal(t, 43.0, testutil.ToFloat64(m.PacketNumber))
}
