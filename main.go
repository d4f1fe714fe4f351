package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gr-butler/lorastation/dispatch"
	"github.com/gr-butler/lorastation/env"
	"github.com/gr-butler/lorastation/led"
	"github.com/gr-butler/lorastation/metrics"
	"github.com/gr-butler/lorastation/packet"
	"github.com/gr-butler/lorastation/radio"
	"github.com/gr-butler/lorastation/receiver"
	"github.com/gr-butler/lorastation/sinks/broadcast"
	"github.com/gr-butler/lorastation/sinks/display"
	"github.com/gr-butler/lorastation/sinks/mqtt"
	"github.com/gr-butler/lorastation/sinks/relay"
	"github.com/gr-butler/lorastation/sinks/store"
	"github.com/prometheus/client_golang/prometheus"

	logger "github.com/sirupsen/logrus"
)

const version = "GRB-LoRaStation-1.0.0"

type groundstation struct {
	cfg     *env.Config
	link    radio.Link
	disp    *dispatch.Dispatcher
	rx      *receiver.Receiver
	metrics *metrics.Metrics
	reg     *prometheus.Registry
	hub     *broadcast.Hub

	db        *sql.DB
	mqtt      *mqtt.Publisher
	healthLed *led.LED
}

func main() {
	cfg, err := env.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Errorf("Bad configuration [%v]", err)
		logger.Exit(2)
	}
	if cfg.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	if cfg.JSONLog {
		logger.SetFormatter(&logger.JSONFormatter{})
	}
	logger.Infof("Starting ground station [%v]", version)
	if cfg.Test {
		logger.Info("TEST MODE")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, err := newGroundstation(ctx, cfg)
	if err != nil {
		logger.Errorf("Failed to start [%v]", err)
		logger.Exit(1)
	}

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: g.mux()}
	go func() {
		logger.Infof("Starting webservice on [%v]", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Webservice failed [%v]", err)
			stop()
		}
	}()

	rxDone := make(chan struct{})
	go func() {
		defer close(rxDone)
		_ = g.rx.Run(ctx)
	}()
	go g.heartbeat(ctx)
	if g.healthLed != nil {
		go g.healthLight(ctx)
	}

	<-ctx.Done()
	logger.Info("Shutting down...")
	<-rxDone
	g.shutdown()

	sctx, cancel := context.WithTimeout(context.Background(), env.DrainTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warnf("Webservice shutdown [%v]", err)
	}
	logger.Info("Exiting")
}

func newGroundstation(ctx context.Context, cfg *env.Config) (*groundstation, error) {
	g := &groundstation{cfg: cfg}

	g.reg = prometheus.NewRegistry()
	g.reg.MustRegister(prometheus.NewGoCollector())
	g.metrics = metrics.New(g.reg)

	link, err := openLink(cfg)
	if err != nil {
		return nil, err
	}
	g.link = link

	g.disp = dispatch.New(
		dispatch.WithQueueSize(cfg.QueueSize),
		dispatch.WithDropHook(g.metrics.ConsumerDropped),
		dispatch.WithErrorHook(g.metrics.ConsumerFailed),
	)
	g.hub = broadcast.New(g.disp, cfg.QueueSize, time.Second)
	g.disp.Attach("metrics", g.metrics, 0)

	if cfg.Display {
		g.disp.Attach("display", display.New(os.Stdout, true), 0)
	} else if cfg.Verbose {
		g.disp.Attach("display", display.New(logWriter{}, false), 0)
	}

	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			g.shutdown()
			return nil, err
		}
		g.db = db
		st := store.New(db, cfg.DBTable, 0)
		if err := st.Init(ctx); err != nil {
			g.shutdown()
			return nil, err
		}
		g.disp.Attach("store", st, 0)
	}

	if cfg.MQTTBroker != "" {
		g.mqtt = mqtt.New(mqtt.Config{Broker: cfg.MQTTBroker, Topic: cfg.MQTTTopic})
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := g.mqtt.Connect(cctx); err != nil {
			// paho keeps retrying in the background
			logger.Warnf("MQTT broker [%v] not reachable yet [%v]", cfg.MQTTBroker, err)
		}
		cancel()
		g.disp.Attach("mqtt", g.mqtt, 0)
	}

	if cfg.RelayURL != "" && !cfg.Test {
		g.disp.Attach("relay", relay.New(relay.Config{
			URL:          cfg.RelayURL,
			StationID:    cfg.RelayStationID,
			AuthKey:      cfg.RelayAuthKey,
			SoftwareType: version,
		}), 0)
	}

	if cfg.LEDPin != "" {
		l, err := led.Open("activity", cfg.LEDPin, env.LEDFlashDuration)
		if err != nil {
			// no LED is not worth stopping for
			logger.Warnf("Activity LED disabled [%v]", err)
		} else {
			g.disp.Attach("led", l, 0)
		}
	}

	if cfg.HealthLEDPin != "" {
		l, err := led.Open("health", cfg.HealthLEDPin, env.LEDFlashDuration)
		if err != nil {
			logger.Warnf("Health LED disabled [%v]", err)
		} else {
			g.healthLed = l
		}
	}

	g.rx = receiver.New(receiver.Config{
		PollTimeout:    cfg.PollTimeout,
		MaxLinkErrors:  cfg.MaxLinkErrors,
		SilenceTimeout: cfg.Silence,
	}, g.link, packet.Validator{SeaLevelPa: cfg.SeaLevelPa}, g.disp, g.metrics)

	logger.Infof("Pipeline ready, [%v] consumers attached", g.disp.Subscribers())
	return g, nil
}

func openLink(cfg *env.Config) (radio.Link, error) {
	switch cfg.Link {
	case env.LinkUDP:
		return radio.ListenUDP(cfg.UDPAddr)
	case env.LinkSim:
		s := radio.NewSimulator(uint32(cfg.SimFlight), cfg.SimInterval, cfg.SeaLevelPa)
		s.CorruptEvery = cfg.SimCorrupt
		return s, nil
	default:
		return radio.OpenSerial(cfg.SerialDevice, cfg.Baud, cfg.PollTimeout, packet.FrameSize)
	}
}

// shutdown runs once the receive loop has stopped.
func (g *groundstation) shutdown() {
	if g.link != nil {
		if err := g.link.Close(); err != nil {
			logger.Warnf("Closing link [%v]", err)
		}
	}
	if g.disp != nil {
		g.disp.Close()
		ctx, cancel := context.WithTimeout(context.Background(), env.DrainTimeout)
		if err := g.disp.Wait(ctx); err != nil {
			logger.Warnf("Consumers did not drain in time [%v]", err)
		}
		cancel()
	}
	if g.mqtt != nil {
		g.mqtt.Close()
	}
	if g.db != nil {
		_ = g.db.Close()
	}
}

func (g *groundstation) heartbeat(ctx context.Context) {
	logger.Info("Heartbeat started")
	t := time.NewTicker(env.HeartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		stats := g.rx.Stats()
		shortest, longest := stats.IntervalSpread(env.RecentFrames)
		logger.Infof("Link healthy [%v] invalid [%.1f%%] over [%v] frames, [%.1f%%] over last [%v]",
			g.rx.Healthy(),
			stats.InvalidRatio()*100,
			stats.Window(),
			stats.RecentInvalidRatio(env.RecentFrames)*100,
			env.RecentFrames)
		logger.Infof("Interval mean [%v] last [%v] range [%v - %v] last seen [%v] subscribers [%v] ws clients [%v]",
			stats.MeanInterval().Round(time.Millisecond),
			stats.LastInterval().Round(time.Millisecond),
			shortest.Round(time.Millisecond),
			longest.Round(time.Millisecond),
			stats.LastSeen().Format(time.RFC822),
			g.disp.Subscribers(),
			g.hub.Clients())
	}
}

// healthLight mirrors Receiver.Healthy on the health LED.
func (g *groundstation) healthLight(ctx context.Context) {
	t := time.NewTicker(env.HealthLedInterval)
	defer t.Stop()
	defer g.healthLed.Off()
	for {
		g.healthLed.Heartbeat(g.rx.Healthy())
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// logWriter sends display frames to the debug log when there is no terminal.
type logWriter struct{}

var _ io.Writer = logWriter{}

func (logWriter) Write(b []byte) (int, error) {
	logger.Debugf("\n%s", b)
	return len(b), nil
}
