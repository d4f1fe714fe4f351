package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gr-butler/lorastation/packet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logger "github.com/sirupsen/logrus"
)

type status interface {
	Healthy() bool
	Latest() (packet.Packet, bool)
}

type webdata struct {
	TimeNow string         `json:"time"`
	Healthy bool           `json:"healthy"`
	Packet  *packet.Packet `json:"packet"`
}

func (g *groundstation) mux() *http.ServeMux {
	return newMux(g.rx, g.reg, g.hub)
}

func newMux(st status, gatherer prometheus.Gatherer, ws http.Handler) *http.ServeMux {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	m.HandleFunc("/healthz", healthHandler(st))
	m.HandleFunc("/latest", latestHandler(st))
	m.Handle("/ws", ws)
	return m
}

func healthHandler(st status) http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		if !st.Healthy() {
			http.Error(rw, "link unhealthy", http.StatusServiceUnavailable)
			return
		}
		_, _ = rw.Write([]byte("ok\n"))
	}
}

func latestHandler(st status) http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		wd := webdata{
			TimeNow: time.Now().Format(time.RFC822),
			Healthy: st.Healthy(),
		}
		if p, ok := st.Latest(); ok {
			wd.Packet = &p
		}

		js, err := json.Marshal(wd)
		if err != nil {
			logger.Errorf("JSON error [%v]", err)
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		logger.Debugf("Web read: \n[%v]", string(js))
		_, _ = rw.Write(js) // not much we can do if this fails
	}
}
