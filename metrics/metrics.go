package metrics

import (
	"context"
	"math"

	"github.com/gr-butler/lorastation/packet"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lorastation"

// Metrics holds every collector the station exports. It is the receive
// loop's observer, the dispatcher's drop/error hook and a consumer that
// mirrors the latest valid reading into gauges.
type Metrics struct {
	FramesReceived  prometheus.Counter
	FramesMalformed prometheus.Counter
	PacketsDecoded  *prometheus.CounterVec
	LinkErrors      prometheus.Counter
	LinkHealthy     prometheus.Gauge
	InvalidRatio    prometheus.Gauge

	ConsumerDrops  *prometheus.CounterVec
	ConsumerErrors *prometheus.CounterVec

	Temperature    prometheus.Gauge
	Pressure       prometheus.Gauge
	BatteryVoltage prometheus.Gauge
	Altitude       prometheus.Gauge
	PacketNumber   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Raw frames handed over by the radio link",
		}),
		FramesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_malformed_total",
			Help:      "Frames discarded because they could not be decoded",
		}),
		PacketsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_decoded_total",
			Help:      "Decoded packets by checksum outcome",
		}, []string{"valid"}),
		LinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_errors_total",
			Help:      "Failed radio receive calls",
		}),
		LinkHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_healthy",
			Help:      "1 while the receive loop considers the link alive",
		}),
		InvalidRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "invalid_ratio",
			Help:      "Share of recent packets failing the checksum",
		}),
		ConsumerDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_dropped_total",
			Help:      "Packets discarded from a full consumer queue",
		}, []string{"consumer"}),
		ConsumerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_errors_total",
			Help:      "Packets a consumer failed to process",
		}, []string{"consumer"}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Temperature C",
		}),
		Pressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pressure_pascal",
			Help:      "Atmospheric pressure Pa",
		}),
		BatteryVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_volts",
			Help:      "Transmitter battery V",
		}),
		Altitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "altitude_metres",
			Help:      "Barometric altitude m",
		}),
		PacketNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packet_number",
			Help:      "Last valid packet number",
		}),
	}
	reg.MustRegister(
		m.FramesReceived,
		m.FramesMalformed,
		m.PacketsDecoded,
		m.LinkErrors,
		m.LinkHealthy,
		m.InvalidRatio,
		m.ConsumerDrops,
		m.ConsumerErrors,
		m.Temperature,
		m.Pressure,
		m.BatteryVoltage,
		m.Altitude,
		m.PacketNumber)
	m.LinkHealthy.Set(1)
	return m
}

func (m *Metrics) FrameReceived() {
	m.FramesReceived.Inc()
}

func (m *Metrics) FrameMalformed() {
	m.FramesMalformed.Inc()
}

func (m *Metrics) PacketDecoded(p packet.Packet) {
	if p.Valid {
		m.PacketsDecoded.WithLabelValues("true").Inc()
	} else {
		m.PacketsDecoded.WithLabelValues("false").Inc()
	}
}

func (m *Metrics) LinkError() {
	m.LinkErrors.Inc()
}

func (m *Metrics) LinkQuality(invalidRatio float64, healthy bool) {
	m.InvalidRatio.Set(invalidRatio)
	if healthy {
		m.LinkHealthy.Set(1)
	} else {
		m.LinkHealthy.Set(0)
	}
}

func (m *Metrics) ConsumerDropped(name string) {
	m.ConsumerDrops.WithLabelValues(name).Inc()
}

func (m *Metrics) ConsumerFailed(name string, _ error) {
	m.ConsumerErrors.WithLabelValues(name).Inc()
}

// Consume updates the reading gauges. Invalid packets are skipped so a
// corrupted frame never shows up on a dashboard; a NaN altitude leaves the
// previous value in place.
func (m *Metrics) Consume(_ context.Context, p packet.Packet) error {
	if !p.Valid {
		return nil
	}
	m.Temperature.Set(p.Temperature)
	m.Pressure.Set(p.Pressure)
	m.BatteryVoltage.Set(float64(p.BatteryVoltage))
	m.PacketNumber.Set(float64(p.PacketNumber))
	if !math.IsNaN(p.Altitude) && !math.IsInf(p.Altitude, 0) {
		m.Altitude.Set(p.Altitude)
	}
	return nil
}
