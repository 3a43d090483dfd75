package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrc8Single(t *testing.T) {
	crc := CRC8(0)
	crc.Single(0x01)
	assert.EqualValues(t, 0x5E, crc)
	crc = CRC8(0)
	crc.Single(0x02)
	assert.EqualValues(t, 0xBC, crc)
}

func TestCrc8SelfCheck(t *testing.T) {
	data := []byte{0x04, 0x00, 0x01, 0x01, 0x07, 0xFE, 0xFD, 0x10}
	crc := CRC8(0)
	crc.Block(data)
	// appending the checksum must cancel it out
	crc.Single(uint8(crc))
	assert.EqualValues(t, 0, crc)
}
