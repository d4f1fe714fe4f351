package env

import "time"

const (
	GPIO19 = "GPIO19" // packet activity LED
	GPIO20 = "GPIO20" // link health LED

	ActivityLed = GPIO19
	HealthLed   = GPIO20

	LEDFlashDuration = time.Millisecond * 50

	DefaultBaud        = 57600
	DefaultSerial      = "/dev/ttyS0"
	DefaultUDPAddr     = ":1700"
	DefaultListenAddr  = ":80"
	DefaultPollTimeout = 100 * time.Millisecond
	// how long shutdown waits for consumers to drain
	DrainTimeout = 5 * time.Second
	// interval between link stats log lines
	HeartbeatInterval = 30 * time.Second
	// interval between health LED updates
	HealthLedInterval = 2 * time.Second
	// frames behind the short term link figures in the heartbeat
	RecentFrames = 10

	LinkSerial = "serial"
	LinkUDP    = "udp"
	LinkSim    = "sim"
)
