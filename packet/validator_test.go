package packet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC8CheckValue(t *testing.T) {
	// catalogue check value for CRC-8/SMBUS
	assert.Equal(t, uint8(0xF4), CRC8([]byte("123456789")))
	assert.Equal(t, uint8(0), CRC8(nil))
}

func TestNominalFrame(t *testing.T) {
	v := Validator{SeaLevelPa: 101325}
	p, err := v.Process(Seal(nominal()))
	require.NoError(t, err)

	assert.True(t, p.Valid)
	assert.InDelta(t, 0.0, p.Altitude, 1e-9)
	assert.Equal(t, 25.0, p.Temperature)
	assert.Equal(t, 101325.0, p.Pressure)
	assert.Equal(t, float32(3.7), p.BatteryVoltage)
	assert.Equal(t, uint32(1), p.PacketNumber)
	assert.Equal(t, uint32(1), p.FlightNumber)
}

func TestChecksumFlipped(t *testing.T) {
	v := Validator{SeaLevelPa: 101325}
	good, err := v.Process(Seal(nominal()))
	require.NoError(t, err)

	raw := Seal(nominal())
	raw[ChecksumOffset] ^= 0xFF
	bad, err := v.Process(raw)
	require.NoError(t, err)

	assert.False(t, bad.Valid)
	bad.Valid = true
	bad.Checksum = good.Checksum
	assert.Equal(t, good, bad)
}

func TestSingleByteCorruption(t *testing.T) {
	v := Validator{SeaLevelPa: 101325}
	orig := Seal(nominal())
	want, err := Decode(orig)
	require.NoError(t, err)

	for i := 0; i < ChecksumOffset; i++ {
		for _, mask := range []byte{0x01, 0x80, 0x5A, 0xFF} {
			raw := append([]byte(nil), orig...)
			raw[i] ^= mask

			p, err := v.Process(raw)
			require.NoError(t, err)
			assert.False(t, p.Valid, "byte %d mask %#x", i, mask)

			// only the field covering byte i may differ
			got := p
			got.Valid, got.Altitude = false, 0
			switch {
			case i < 8:
				got.Temperature = want.Temperature
			case i < 16:
				got.Pressure = want.Pressure
			case i < 20:
				got.BatteryVoltage = want.BatteryVoltage
			case i < 24:
				got.PacketNumber = want.PacketNumber
			default:
				got.FlightNumber = want.FlightNumber
			}
			assert.Equal(t, want, got, "byte %d mask %#x", i, mask)
		}
	}
}

func TestAltitudeDecreasesWithPressure(t *testing.T) {
	v := Validator{SeaLevelPa: 102800}
	last := math.Inf(1)
	for pa := 500.0; pa <= 110000; pa += 250 {
		a := v.Altitude(Packet{Temperature: 15, Pressure: pa})
		require.False(t, math.IsNaN(a) || math.IsInf(a, 0), "pressure %v", pa)
		assert.Less(t, a, last, "pressure %v", pa)
		last = a
	}
}

func TestAltitudeReferencePressure(t *testing.T) {
	p := Packet{Temperature: 15, Pressure: 101325}
	assert.InDelta(t, 0.0, Validator{SeaLevelPa: 101325}.Altitude(p), 1e-9)
	// a higher reference puts the same reading above sea level
	assert.InDelta(t, 122.0, Validator{SeaLevelPa: 102800}.Altitude(p), 1.0)
}

func TestAltitudeNonPositivePressure(t *testing.T) {
	v := Validator{SeaLevelPa: 101325}
	for _, pa := range []float64{0, -1, math.Inf(-1), math.Inf(1), math.NaN()} {
		assert.True(t, math.IsNaN(v.Altitude(Packet{Temperature: 20, Pressure: pa})), "pressure %v", pa)
	}

	p, err := v.Process(Seal(Packet{Temperature: 20, Pressure: 0}))
	require.NoError(t, err)
	assert.True(t, p.Valid)
	assert.True(t, math.IsNaN(p.Altitude))
}
