package env

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	return Load(flag.NewFlagSet("lorastation", flag.ContinueOnError), args)
}

func TestSeaLevelRequired(t *testing.T) {
	t.Setenv("SEALEVEL_PA", "")
	_, err := load(t)
	assert.Error(t, err)

	_, err = load(t, "-sealevel", "0")
	assert.ErrorIs(t, err, ErrNoSeaLevel)

	_, err = load(t, "-sealevel", "-5")
	assert.ErrorIs(t, err, ErrNoSeaLevel)
}

func TestSeaLevelFromEnv(t *testing.T) {
	t.Setenv("SEALEVEL_PA", "101325")
	c, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, 101325.0, c.SeaLevelPa)

	c, err = load(t, "-sealevel", "102000")
	require.NoError(t, err)
	assert.Equal(t, 102000.0, c.SeaLevelPa)

	t.Setenv("SEALEVEL_PA", "high")
	_, err = load(t)
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	t.Setenv("SEALEVEL_PA", "101325")
	c, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, LinkSerial, c.Link)
	assert.Equal(t, DefaultSerial, c.SerialDevice)
	assert.Equal(t, DefaultBaud, c.Baud)
	assert.Equal(t, DefaultPollTimeout, c.PollTimeout)
	assert.Equal(t, 64, c.QueueSize)
	assert.Empty(t, c.DatabaseURL)
	assert.False(t, c.JSONLog)
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("SEALEVEL_PA", "101325")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_TOPIC", "balloon")
	t.Setenv("RELAY_URL", "http://tracker/upload")
	t.Setenv("LED_PIN", GPIO19)
	t.Setenv("HEALTH_LED_PIN", HealthLed)
	t.Setenv("LOG_FORMAT", "json")

	c, err := load(t, "-db", "postgres://flag")
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag", c.DatabaseURL)
	assert.Equal(t, "tcp://broker:1883", c.MQTTBroker)
	assert.Equal(t, "balloon", c.MQTTTopic)
	assert.Equal(t, "http://tracker/upload", c.RelayURL)
	assert.Equal(t, GPIO19, c.LEDPin)
	assert.Equal(t, GPIO20, c.HealthLEDPin)
	assert.True(t, c.JSONLog)
}

func TestLinkSelection(t *testing.T) {
	t.Setenv("SEALEVEL_PA", "101325")
	c, err := load(t, "-test")
	require.NoError(t, err)
	assert.Equal(t, LinkSim, c.Link)

	c, err = load(t, "-link", "udp", "-udp", ":9999", "-poll", "250ms")
	require.NoError(t, err)
	assert.Equal(t, LinkUDP, c.Link)
	assert.Equal(t, ":9999", c.UDPAddr)
	assert.Equal(t, 250*time.Millisecond, c.PollTimeout)

	_, err = load(t, "-link", "carrier-pigeon")
	assert.Error(t, err)

	_, err = load(t, "-queue", "0")
	assert.Error(t, err)
}
