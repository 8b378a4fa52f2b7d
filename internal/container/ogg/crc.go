package ogg

// Ogg uses an MSB-first CRC-32 with polynomial 0x04C11DB7, initial value 0
// and no final XOR. hash/crc32 only implements the reflected form, so the
// table is built here.
const crcPolynomial = 0x04C11DB7

var crcTable = func() (t [256]uint32) {
	for i := range t {
		r := uint32(i) << 24
		for iter := 0; iter < 8; iter++ {
			if r&0x80000000 != 0 {
				r = r<<1 ^ crcPolynomial
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

// Checksum returns the Ogg CRC of data.
func Checksum(data []byte) uint32 {
	return crcUpdate(0, data)
}

func crcUpdate(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
