package fakefs

import "github.com/pkg/errors"

// Fixture describes a node created at mount. Files without Content keep only
// their size and read back as zeros.
type Fixture struct {
	Path    string
	Dir     bool
	Size    int64
	Content []byte
}

const (
	kib = 1024
	mib = 1024 * kib
)

// DefaultFixtures is the layout of a typical flash cart card.
func DefaultFixtures() []Fixture {
	return []Fixture{
		{Path: "/SYSTEM", Dir: true},
		{Path: "/SYSTEM/PATCH", Dir: true},
		{Path: "/SYSTEM/PLUG", Dir: true},
		{Path: "/SYSTEM/RECENT.TXT"},
		{Path: "/ALTT.gba", Size: 8 * mib},
		{Path: "/Metroid.gba", Size: 16 * mib},
		{Path: "/Sample.gb", Size: 256 * kib},
		{Path: "/Readme.txt", Size: 2 * kib},
		{Path: "/GAMES", Dir: true},
		{Path: "/GAMES/Pokemon.gba", Size: 32 * mib},
		{Path: "/GAMES/MarioKart.gba", Size: 16 * mib},
	}
}

func (s *Store) populate(fixtures []Fixture) error {
	for _, fx := range fixtures {
		if fx.Dir {
			if _, _, err := s.ensureDir(fx.Path); err != nil {
				return errors.Wrapf(err, "could not create fixture %v", fx.Path)
			}

			continue
		}

		parentPath, name := splitParent(fx.Path)
		parent, created, err := s.ensureDir(parentPath)
		if err != nil {
			return errors.Wrapf(err, "could not create fixture %v", fx.Path)
		}

		if pn, ok := s.pool.get(parent); ok {
			if _, exists := s.findChild(pn, name); exists {
				return errors.Wrapf(ErrAlreadyExists, "could not create fixture %v", fx.Path)
			}
		}

		size := fx.Size
		if l := int64(len(fx.Content)); l > size {
			size = l
		}

		_, n, err := s.newFile(parent, name, size)
		if err != nil {
			s.rollback(created)
			return errors.Wrapf(err, "could not create fixture %v", fx.Path)
		}

		if fx.Content != nil {
			n.data = make([]byte, size)
			copy(n.data, fx.Content)
		}
	}

	return nil
}
