package env

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

var ErrNoSeaLevel = errors.New("sea level pressure not set, use -sealevel or SEALEVEL_PA")

type Config struct {
	Test    bool
	Verbose bool
	Display bool
	JSONLog bool

	SeaLevelPa float64

	Link          string
	SerialDevice  string
	Baud          int
	UDPAddr       string
	PollTimeout   time.Duration
	MaxLinkErrors int
	Silence       time.Duration

	QueueSize  int
	ListenAddr string

	DatabaseURL string
	DBTable     string

	MQTTBroker string
	MQTTTopic  string

	RelayURL       string
	RelayStationID string
	RelayAuthKey   string

	LEDPin       string
	HealthLEDPin string

	SimFlight   uint
	SimInterval time.Duration
	SimCorrupt  int
}

// Load parses args into fs. Values not given on the command line fall back
// to the environment, then to the defaults.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	c := &Config{}

	fs.BoolVar(&c.Test, "test", false, "test mode, reads from the simulator instead of a radio")
	fs.BoolVar(&c.Verbose, "verbose", false, "debug logging")
	fs.BoolVar(&c.Display, "display", false, "render each packet to the terminal")
	fs.Float64Var(&c.SeaLevelPa, "sealevel", 0, "sea level pressure in Pa (SEALEVEL_PA)")

	fs.StringVar(&c.Link, "link", LinkSerial, "radio link: serial, udp or sim")
	fs.StringVar(&c.SerialDevice, "serial", DefaultSerial, "serial modem device")
	fs.IntVar(&c.Baud, "baud", DefaultBaud, "serial baud rate")
	fs.StringVar(&c.UDPAddr, "udp", DefaultUDPAddr, "udp listen address for packet forwarders")
	fs.DurationVar(&c.PollTimeout, "poll", DefaultPollTimeout, "link poll timeout")
	fs.IntVar(&c.MaxLinkErrors, "maxerrors", 10, "consecutive link errors before unhealthy")
	fs.DurationVar(&c.Silence, "silence", 0, "no packets for this long is unhealthy, 0 disables")

	fs.IntVar(&c.QueueSize, "queue", 64, "per consumer queue size")
	fs.StringVar(&c.ListenAddr, "listen", DefaultListenAddr, "http listen address")

	fs.StringVar(&c.DatabaseURL, "db", "", "postgres url (DATABASE_URL)")
	fs.StringVar(&c.DBTable, "table", "telemetry", "telemetry table")
	fs.StringVar(&c.MQTTBroker, "mqtt", "", "mqtt broker, eg tcp://localhost:1883 (MQTT_BROKER)")
	fs.StringVar(&c.MQTTTopic, "topic", "", "mqtt topic prefix (MQTT_TOPIC)")
	fs.StringVar(&c.RelayURL, "relay", "", "tracker url packets are relayed to (RELAY_URL)")
	fs.StringVar(&c.LEDPin, "led", "", "activity LED pin, eg "+ActivityLed+" (LED_PIN)")
	fs.StringVar(&c.HealthLEDPin, "healthled", "", "link health LED pin, eg "+HealthLed+" (HEALTH_LED_PIN)")

	fs.UintVar(&c.SimFlight, "flight", 1, "simulated flight number")
	fs.DurationVar(&c.SimInterval, "interval", time.Second, "simulated packet interval")
	fs.IntVar(&c.SimCorrupt, "corrupt", 10, "corrupt every nth simulated packet, 0 never")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["sealevel"] {
		if v, ok := os.LookupEnv("SEALEVEL_PA"); ok {
			slp, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("SEALEVEL_PA [%v]: %w", v, err)
			}
			c.SeaLevelPa = slp
		}
	}
	if c.SeaLevelPa <= 0 || math.IsNaN(c.SeaLevelPa) || math.IsInf(c.SeaLevelPa, 0) {
		return nil, ErrNoSeaLevel
	}

	lookup(set, "db", "DATABASE_URL", &c.DatabaseURL)
	lookup(set, "mqtt", "MQTT_BROKER", &c.MQTTBroker)
	lookup(set, "topic", "MQTT_TOPIC", &c.MQTTTopic)
	lookup(set, "relay", "RELAY_URL", &c.RelayURL)
	lookup(set, "led", "LED_PIN", &c.LEDPin)
	lookup(set, "healthled", "HEALTH_LED_PIN", &c.HealthLEDPin)
	c.RelayStationID, _ = os.LookupEnv("RELAY_STATION_ID")
	c.RelayAuthKey, _ = os.LookupEnv("RELAY_AUTH_KEY")
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok && v == "json" {
		c.JSONLog = true
	}

	if c.Test {
		c.Link = LinkSim
	}
	switch c.Link {
	case LinkSerial, LinkUDP, LinkSim:
	default:
		return nil, fmt.Errorf("unknown link %q", c.Link)
	}
	if c.QueueSize < 1 {
		return nil, fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	return c, nil
}

func lookup(set map[string]bool, name string, key string, dst *string) {
	if set[name] {
		return
	}
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}
