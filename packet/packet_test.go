package packet

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nominal() Packet {
	return Packet{
		Temperature:    25.0,
		Pressure:       101325.0,
		BatteryVoltage: 3.7,
		PacketNumber:   1,
		FlightNumber:   1,
	}
}

func TestFrameSize(t *testing.T) {
	assert.Len(t, Encode(nominal()), FrameSize)
}

func TestRoundTrip(t *testing.T) {
	samples := []Packet{
		nominal(),
		{Temperature: -56.5, Pressure: 2511.02, BatteryVoltage: 3.1, PacketNumber: 4096, FlightNumber: 7, Checksum: 0xAB},
		{Temperature: math.MaxFloat64, Pressure: -1, BatteryVoltage: math.SmallestNonzeroFloat32, PacketNumber: math.MaxUint32, FlightNumber: math.MaxUint32, Checksum: 0xFF},
		{},
	}
	for _, s := range samples {
		raw := Encode(s)
		p, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, s, p)
		assert.Equal(t, raw, Encode(p))
	}
}

func TestLayoutOffsets(t *testing.T) {
	raw := Encode(Packet{PacketNumber: 0x04030201, FlightNumber: 0x08070605, Checksum: 0x99})
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, raw[20:24])
	assert.Equal(t, []byte{0x05, 0x06, 0x07, 0x08}, raw[24:28])
	assert.Equal(t, byte(0x99), raw[ChecksumOffset])
	assert.Equal(t, []byte{0, 0, 0}, raw[29:32])
}

func TestDecodeLengthMismatch(t *testing.T) {
	for _, n := range []int{0, 1, FrameSize - 1, FrameSize + 1, 255} {
		_, err := Decode(make([]byte, n))
		assert.True(t, errors.Is(err, ErrLengthMismatch), "len %d", n)
		assert.True(t, errors.Is(err, ErrMalformed), "len %d", n)
	}
}

func TestDecodeIgnoresPadding(t *testing.T) {
	raw := Seal(nominal())
	raw[29], raw[30], raw[31] = 0xDE, 0xAD, 0xBE
	p, err := Validator{SeaLevelPa: 101325}.Process(raw)
	require.NoError(t, err)
	assert.True(t, p.Valid)
}

func TestMarshalJSON(t *testing.T) {
	p := nominal()
	p.Valid = true
	p.Altitude = math.NaN()

	js, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(js, &out))
	assert.Nil(t, out["altitude"])
	assert.Equal(t, 101325.0, out["pressure"])
	assert.Equal(t, 1.0, out["flight_number"])
	assert.Equal(t, true, out["valid"])
	assert.Contains(t, out, "received_at")
}
