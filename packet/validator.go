package packet

import "math"

const (
	kelvin          = 273.15
	lapseRate       = 0.0065 // K/m
	barometricPower = 1 / 5.257
)

// Validator checks frame integrity and derives altitude. SeaLevelPa is the
// reference pressure the deployment was calibrated against.
type Validator struct {
	SeaLevelPa float64
}

// Validate reports whether the checksum carried by p matches the payload of
// the frame it was decoded from.
func (v Validator) Validate(p Packet, raw []byte) bool {
	return Checksum(raw) == p.Checksum
}

// Altitude is the hypsometric altitude in metres. For a pressure that is
// zero, negative or not finite the result is NaN; sinks must cope with it.
func (v Validator) Altitude(p Packet) float64 {
	if !(p.Pressure > 0) || math.IsInf(p.Pressure, 0) {
		return math.NaN()
	}
	return (math.Pow(v.SeaLevelPa/p.Pressure, barometricPower) - 1) * (p.Temperature + kelvin) / lapseRate
}

// Process decodes raw and fills in the derived fields. A checksum mismatch is
// not an error, the packet comes back with Valid unset.
func (v Validator) Process(raw []byte) (Packet, error) {
	p, err := Decode(raw)
	if err != nil {
		return Packet{}, err
	}
	p.Valid = v.Validate(p, raw)
	p.Altitude = v.Altitude(p)
	return p, nil
}
