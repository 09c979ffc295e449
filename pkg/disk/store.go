// Package disk serves a sector-addressable view of a read-only base image.
// Writes land in a full in-memory mirror when one can be allocated, otherwise
// in a bounded overlay of modified sectors.
package disk

import (
	"github.com/pkg/errors"

	"github.com/JakWai01/sile-fakefs/internal/logging"
)

const (
	SectorSize = 512

	DefaultOverlayCapacity = 256
)

var (
	ErrNoImage       = errors.New("no disk image")
	ErrOutOfRange    = errors.New("sector range out of bounds")
	ErrStoreFull     = errors.New("sector overlay full")
	ErrShortBuffer   = errors.New("buffer shorter than sector range")
	ErrInvalidCount  = errors.New("sector count is zero")
	errNoMirrorSpace = errors.New("mirror exceeds limit")
)

// Mode is how writes are retained.
type Mode int

const (
	ModeUninitialized Mode = iota
	ModeMirror
	ModeOverlay
)

func (m Mode) String() string {
	switch m {
	case ModeMirror:
		return "mirror"
	case ModeOverlay:
		return "overlay"
	default:
		return "uninitialized"
	}
}

type Options struct {
	Source Source

	// OverlayCapacity is the number of sectors the overlay can hold.
	OverlayCapacity int

	// MirrorLimit caps the mirror size in bytes. Images above it use the
	// overlay. Zero means no limit.
	MirrorLimit int64

	// Allocate obtains the mirror buffer. It defaults to make.
	Allocate func(size int) ([]byte, error)

	Logger logging.StructuredLogger
}

type Store struct {
	opts Options
	log  logging.StructuredLogger

	base    []byte
	sectors uint32
	mirror  []byte
	overlay *overlay
	mode    Mode
}

func NewStore(opts Options) *Store {
	if opts.OverlayCapacity <= 0 {
		opts.OverlayCapacity = DefaultOverlayCapacity
	}
	if opts.Allocate == nil {
		opts.Allocate = func(size int) ([]byte, error) {
			return make([]byte, size), nil
		}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNoopLogger()
	}

	return &Store{
		opts: opts,
		log:  opts.Logger,
	}
}

// init loads the base image on first access.
func (s *Store) init() error {
	if s.mode != ModeUninitialized {
		return nil
	}

	if s.opts.Source == nil {
		return ErrNoImage
	}

	img, err := s.opts.Source.Load()
	if err != nil {
		return err
	}
	if len(img) < SectorSize {
		return ErrNoImage
	}

	usable := len(img) - len(img)%SectorSize
	s.base = img[:usable]
	s.sectors = uint32(usable / SectorSize)

	mirror, err := s.allocateMirror(usable)
	if err != nil {
		s.log.Warn("Disk.MirrorUnavailable", map[string]interface{}{
			"size":  usable,
			"error": err.Error(),
		})

		s.overlay = newOverlay(s.opts.OverlayCapacity)
		s.mode = ModeOverlay
	} else {
		copy(mirror, s.base)
		s.mirror = mirror
		s.mode = ModeMirror
	}

	s.log.Debug("Disk.Init", map[string]interface{}{
		"sectors": s.sectors,
		"mode":    s.mode.String(),
	})

	return nil
}

func (s *Store) allocateMirror(size int) ([]byte, error) {
	if s.opts.MirrorLimit > 0 && int64(size) > s.opts.MirrorLimit {
		return nil, errNoMirrorSpace
	}

	b, err := s.opts.Allocate(size)
	if err != nil {
		return nil, err
	}
	if len(b) < size {
		return nil, errNoMirrorSpace
	}

	return b[:size], nil
}

// Init loads the image if that has not happened yet.
func (s *Store) Init() error {
	if err := s.init(); err != nil {
		return errors.Wrap(err, "could not initialize disk")
	}

	return nil
}

// Remount drops the mirror and the overlay. The next access reloads the image.
func (s *Store) Remount() {
	s.log.Debug("Disk.Remount", nil)

	s.base = nil
	s.sectors = 0
	s.mirror = nil
	s.overlay = nil
	s.mode = ModeUninitialized
}

func (s *Store) Mode() Mode {
	return s.mode
}

// SectorCount is the number of whole sectors in the image.
func (s *Store) SectorCount() (uint32, error) {
	if err := s.Init(); err != nil {
		return 0, err
	}

	return s.sectors, nil
}

// OverlayUsage returns the number of overlay sectors in use and the capacity.
func (s *Store) OverlayUsage() (int, int) {
	if s.overlay == nil {
		return 0, s.opts.OverlayCapacity
	}

	return s.overlay.used(), s.opts.OverlayCapacity
}

func (s *Store) check(buf []byte, lba, count uint32) error {
	if err := s.Init(); err != nil {
		return err
	}
	if count == 0 {
		return ErrInvalidCount
	}
	if uint64(lba)+uint64(count) > uint64(s.sectors) {
		return errors.Wrapf(ErrOutOfRange, "sectors %d+%d of %d", lba, count, s.sectors)
	}
	if len(buf) < int(count)*SectorSize {
		return errors.Wrapf(ErrShortBuffer, "%d bytes for %d sectors", len(buf), count)
	}

	return nil
}

func (s *Store) baseSector(lba uint32) []byte {
	off := int(lba) * SectorSize

	return s.base[off : off+SectorSize]
}

// ReadSectors copies count sectors starting at lba into buf.
func (s *Store) ReadSectors(buf []byte, lba, count uint32) error {
	s.log.Trace("Disk.ReadSectors", map[string]interface{}{
		"lba":   lba,
		"count": count,
	})

	if err := s.check(buf, lba, count); err != nil {
		return err
	}

	if s.mirror != nil {
		off := int(lba) * SectorSize
		copy(buf, s.mirror[off:off+int(count)*SectorSize])

		return nil
	}

	for i := uint32(0); i < count; i++ {
		dst := buf[int(i)*SectorSize : int(i+1)*SectorSize]
		if b, ok := s.overlay.lookup(lba + i); ok {
			copy(dst, b)
		} else {
			copy(dst, s.baseSector(lba+i))
		}
	}

	return nil
}

// WriteSectors stores count sectors from buf starting at lba. In overlay mode
// a full overlay fails the request with ErrStoreFull; sectors written before
// that point keep their new content.
func (s *Store) WriteSectors(buf []byte, lba, count uint32) error {
	s.log.Trace("Disk.WriteSectors", map[string]interface{}{
		"lba":   lba,
		"count": count,
	})

	if err := s.check(buf, lba, count); err != nil {
		return err
	}

	if s.mirror != nil {
		off := int(lba) * SectorSize
		copy(s.mirror[off:off+int(count)*SectorSize], buf)

		return nil
	}

	for i := uint32(0); i < count; i++ {
		dst, ok := s.overlay.entry(lba+i, s.baseSector(lba+i))
		if !ok {
			s.log.Warn("Disk.OverlayFull", map[string]interface{}{
				"lba":      lba + i,
				"capacity": s.opts.OverlayCapacity,
			})

			return errors.Wrapf(ErrStoreFull, "sector %d", lba+i)
		}

		copy(dst, buf[int(i)*SectorSize:int(i+1)*SectorSize])
	}

	return nil
}
