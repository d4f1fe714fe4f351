package packet

// CRC-8/SMBUS: poly 0x07, init 0x00, not reflected, no final xor.
const crcPolynomial = 0x07

var crcTable = makeTable(crcPolynomial)

func makeTable(poly byte) [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for b := 0; b < 8; b++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// CRC8 computes the checksum of data.
func CRC8(data []byte) uint8 {
	var crc byte
	for _, b := range data {
		crc = crcTable[crc^b]
	}
	return crc
}

// Checksum computes the CRC over the payload bytes of a raw frame, ie.
// everything in front of the checksum byte. Short frames are summed as far
// as they go.
func Checksum(raw []byte) uint8 {
	if len(raw) > ChecksumOffset {
		raw = raw[:ChecksumOffset]
	}
	return CRC8(raw)
}
