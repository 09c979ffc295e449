package disk

import (
	"encoding/binary"

	"github.com/jacobsa/timeutil"
	"github.com/pkg/errors"

	"github.com/JakWai01/sile-fakefs/pkg/fattime"
)

// Result mirrors the FatFs DRESULT codes.
type Result int

const (
	ResOK Result = iota
	ResError
	ResWriteProtected
	ResNotReady
	ResParamError
)

func (r Result) String() string {
	switch r {
	case ResOK:
		return "RES_OK"
	case ResError:
		return "RES_ERROR"
	case ResWriteProtected:
		return "RES_WRPRT"
	case ResNotReady:
		return "RES_NOTRDY"
	case ResParamError:
		return "RES_PARERR"
	default:
		return "RES_UNKNOWN"
	}
}

// Status mirrors the FatFs DSTATUS bits.
type Status uint8

const (
	StatusNoInit Status = 1 << iota
	StatusNoDisk
	StatusProtected
)

type IoctlCmd uint8

const (
	CtrlSync       IoctlCmd = 0
	GetSectorCount IoctlCmd = 1
	GetSectorSize  IoctlCmd = 2
	GetBlockSize   IoctlCmd = 3
)

// Drive adapts a Store to the disk_* glue expected by a FAT engine.
type Drive struct {
	store *Store
	clock timeutil.Clock
}

func NewDrive(store *Store, clock timeutil.Clock) *Drive {
	if clock == nil {
		clock = timeutil.RealClock()
	}

	return &Drive{
		store: store,
		clock: clock,
	}
}

func statusFor(err error) Status {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNoImage):
		return StatusNoInit | StatusNoDisk
	default:
		return StatusNoInit
	}
}

func resultFor(err error) Result {
	switch {
	case err == nil:
		return ResOK
	case errors.Is(err, ErrInvalidCount), errors.Is(err, ErrOutOfRange), errors.Is(err, ErrShortBuffer):
		return ResParamError
	default:
		return ResError
	}
}

// Initialize loads the image and reports the resulting drive status.
func (d *Drive) Initialize() Status {
	return statusFor(d.store.Init())
}

// Status reports the drive status without loading anything.
func (d *Drive) Status() Status {
	if d.store.Mode() == ModeUninitialized {
		return StatusNoInit
	}

	return 0
}

func (d *Drive) Read(buf []byte, lba, count uint32) Result {
	return resultFor(d.store.ReadSectors(buf, lba, count))
}

func (d *Drive) Write(buf []byte, lba, count uint32) Result {
	return resultFor(d.store.WriteSectors(buf, lba, count))
}

// Ioctl answers the control codes FatFs needs for a fixed medium. Values are
// written little endian into buf.
func (d *Drive) Ioctl(cmd IoctlCmd, buf []byte) Result {
	if d.store.Mode() == ModeUninitialized {
		return ResNotReady
	}

	switch cmd {
	case CtrlSync:
		return ResOK
	case GetSectorCount:
		if len(buf) < 4 {
			return ResParamError
		}
		n, err := d.store.SectorCount()
		if err != nil {
			return resultFor(err)
		}
		binary.LittleEndian.PutUint32(buf, n)
	case GetSectorSize:
		if len(buf) < 2 {
			return ResParamError
		}
		binary.LittleEndian.PutUint16(buf, SectorSize)
	case GetBlockSize:
		if len(buf) < 4 {
			return ResParamError
		}
		binary.LittleEndian.PutUint32(buf, 1)
	default:
		return ResParamError
	}

	return ResOK
}

// FatTime is get_fattime for the drive's clock.
func (d *Drive) FatTime() uint32 {
	return fattime.Now(d.clock)
}
