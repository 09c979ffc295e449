package fattime

import (
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
)

func TestPackKnownValue(t *testing.T) {
	// 2025-11-10 13:37:00, the default time of the emulator RTC.
	v := Pack(time.Date(2025, time.November, 10, 13, 37, 0, 0, time.UTC))

	assert.Equal(t, uint32(45), v>>25)
	assert.Equal(t, uint32(11), (v>>21)&0x0f)
	assert.Equal(t, uint32(10), (v>>16)&0x1f)
	assert.Equal(t, uint32(13), (v>>11)&0x1f)
	assert.Equal(t, uint32(37), (v>>5)&0x3f)
	assert.Equal(t, uint32(0), v&0x1f)
}

func TestUnpackRoundsSecondsDown(t *testing.T) {
	in := time.Date(2001, time.February, 3, 4, 5, 7, 0, time.UTC)

	assert.Equal(t, time.Date(2001, time.February, 3, 4, 5, 6, 0, time.UTC), Unpack(Pack(in)))
}

func TestPackClampsBeforeEpoch(t *testing.T) {
	v := Pack(time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC), Unpack(v))
}

func TestNowUsesClock(t *testing.T) {
	var clock timeutil.SimulatedClock
	clock.SetTime(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))

	v := Now(&clock)

	assert.Equal(t, clock.Now(), Unpack(v))
	assert.Equal(t, uint16(v>>16), Date(v))
	assert.Equal(t, uint16(v&0xffff), Time(v))
}
