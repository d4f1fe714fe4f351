// Package relay forwards valid packets to a remote tracking endpoint as a
// plain GET with the reading encoded in the query string.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/gr-butler/lorastation/packet"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	URL          string
	StationID    string
	AuthKey      string
	SoftwareType string
	Timeout      time.Duration
}

type reading struct {
	StationID      string   `url:"siteid,omitempty"`
	AuthKey        string   `url:"siteAuthenticationKey,omitempty"`
	DateString     string   `url:"dateutc"`
	SoftwareType   string   `url:"softwaretype,omitempty"`
	FlightNumber   uint32   `url:"flight"`
	PacketNumber   uint32   `url:"packet"`
	TempC          *float64 `url:"tempc,omitempty"`
	PressurePa     *float64 `url:"pressurepa,omitempty"`
	BatteryVoltage *float64 `url:"battv,omitempty"`
	AltitudeM      *float64 `url:"altm,omitempty"`
}

type Relay struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Relay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Relay{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Values builds the query for p.
func (r *Relay) Values(p packet.Packet) (string, error) {
	rd := reading{
		StationID:    r.cfg.StationID,
		AuthKey:      r.cfg.AuthKey,
		SoftwareType: r.cfg.SoftwareType,
		// "YYYY-mm-DD HH:mm:ss" in UTC, the encoder escapes the rest
		DateString:     p.ReceivedAt.UTC().Format("2006-01-02 15:04:05"),
		FlightNumber:   p.FlightNumber,
		PacketNumber:   p.PacketNumber,
		TempC:          packet.Finite(p.Temperature),
		PressurePa:     packet.Finite(p.Pressure),
		BatteryVoltage: packet.Finite(float64(p.BatteryVoltage)),
		AltitudeM:      packet.Finite(p.Altitude),
	}
	vals, err := query.Values(rd)
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}
	return vals.Encode(), nil
}

// Consume sends valid packets only, a tracker has no use for a reading that
// failed its checksum.
func (r *Relay) Consume(ctx context.Context, p packet.Packet) error {
	if !p.Valid {
		logger.Debugf("Not relaying invalid packet [%v]", p.PacketNumber)
		return nil
	}
	q, err := r.Values(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.URL+"?"+q, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay packet %d: %w", p.PacketNumber, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay packet %d: HTTP [%v]", p.PacketNumber, resp.Status)
	}
	return nil
}
