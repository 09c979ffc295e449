// Package fattime packs wall-clock times into the 32-bit FAT timestamp
// layout used by directory entries and get_fattime.
//
//	bits 31-25 year since 1980, 24-21 month, 20-16 day,
//	bits 15-11 hour, 10-5 minute, 4-0 second/2
package fattime

import (
	"time"

	"github.com/jacobsa/timeutil"
)

const epochYear = 1980

// Pack converts t to a FAT timestamp. Years outside 1980..2107 are clamped.
func Pack(t time.Time) uint32 {
	year := t.Year() - epochYear
	if year < 0 {
		return Pack(time.Date(epochYear, 1, 1, 0, 0, 0, 0, t.Location()))
	}
	if year > 127 {
		year = 127
	}

	return uint32(year)<<25 |
		uint32(t.Month())<<21 |
		uint32(t.Day())<<16 |
		uint32(t.Hour())<<11 |
		uint32(t.Minute())<<5 |
		uint32(t.Second()/2)
}

// Unpack is the inverse of Pack. Seconds come back rounded down to even.
func Unpack(v uint32) time.Time {
	return time.Date(
		int(v>>25)+epochYear,
		time.Month((v>>21)&0x0f),
		int((v>>16)&0x1f),
		int((v>>11)&0x1f),
		int((v>>5)&0x3f),
		int(v&0x1f)*2,
		0,
		time.UTC,
	)
}

// Now packs the current time of clock.
func Now(clock timeutil.Clock) uint32 {
	return Pack(clock.Now())
}

// Date and Time split a packed value into the FILINFO fdate/ftime halves.
func Date(v uint32) uint16 { return uint16(v >> 16) }
func Time(v uint32) uint16 { return uint16(v) }
