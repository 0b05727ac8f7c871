package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixture_DecodeShortMessage_Fails(t *testing.T) {
	_, ok := Fixture{}.Decode([]byte{0x88, 0x00})
	assert.False(t, ok)
}

func TestFixture_DecodeNonDF17_AddressOnly(t *testing.T) {
	msg := []byte{0x28, 0xAB, 0xCD, 0xEF, 0, 0, 0}
	dm, ok := Fixture{}.Decode(msg)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xABCDEF), dm.Address)
	assert.Nil(t, dm.Altitude)
}

func TestFixture_DecodeAirbornePosition_Altitude(t *testing.T) {
	msg := make([]byte, 14)
	msg[0] = 0x88 // DF17
	msg[1], msg[2], msg[3] = 0xAB, 0xCD, 0xEF
	msg[4] = 0x58 // ME type 11 (airborne position)
	msg[5] = 0x0D
	msg[6] = 0x40

	dm, ok := Fixture{}.Decode(msg)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xABCDEF), dm.Address)
	if assert.NotNil(t, dm.Altitude) {
		assert.Equal(t, 1500, *dm.Altitude)
	}
	assert.Nil(t, dm.Callsign)
}

func TestFixture_DecodeIdentification_Callsign(t *testing.T) {
	msg := make([]byte, 14)
	msg[0] = 0x88
	msg[1], msg[2], msg[3] = 0x11, 0x22, 0x33
	msg[4] = 0x20 // ME type 4 (aircraft identification)
	msg[5], msg[6], msg[7], msg[8], msg[9], msg[10] = 0x0c, 0x3c, 0x72, 0xcf, 0x40, 0x42

	dm, ok := Fixture{}.Decode(msg)
	assert.True(t, ok)
	assert.Nil(t, dm.Altitude)
	if assert.NotNil(t, dm.Callsign) {
		assert.Equal(t, "CC1234AB", *dm.Callsign)
	}
}

func TestFixture_DecodeNoQBit_AltitudeAbsent(t *testing.T) {
	msg := make([]byte, 14)
	msg[0] = 0x88
	msg[1], msg[2], msg[3] = 0xAB, 0xCD, 0xEF
	msg[4] = 0x58
	msg[5] = 0x00 // ac12 == 0, no Q bit, treated as absent
	msg[6] = 0x00

	dm, ok := Fixture{}.Decode(msg)
	assert.True(t, ok)
	assert.Nil(t, dm.Altitude)
}
