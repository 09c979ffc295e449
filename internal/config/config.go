package config

import (
	"github.com/jacobsa/timeutil"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/JakWai01/sile-fakefs/internal/logging"
	"github.com/JakWai01/sile-fakefs/pkg/disk"
	"github.com/JakWai01/sile-fakefs/pkg/fakefs"
)

// EnvPrefix is prepended to every key looked up in the environment.
const EnvPrefix = "sile_fakefs"

const (
	VerboseKey           = "verbose"
	ConfigKey            = "config"
	MountpointKey        = "mountpoint"
	CapacityKey          = "capacity"
	SectorsPerClusterKey = "sectorsPerCluster"
	DataStartKey         = "dataStart"
	FixturesKey          = "fixtures"
	ImageKey             = "image"
	OverlaySectorsKey    = "overlaySectors"
	MirrorLimitKey       = "mirrorLimit"
)

type Config struct {
	Verbose    int    `mapstructure:"verbose"`
	Mountpoint string `mapstructure:"mountpoint"`

	Capacity          int    `mapstructure:"capacity"`
	SectorsPerCluster int    `mapstructure:"sectorsPerCluster"`
	DataStart         uint32 `mapstructure:"dataStart"`
	Fixtures          bool   `mapstructure:"fixtures"`

	Image          string `mapstructure:"image"`
	OverlaySectors int    `mapstructure:"overlaySectors"`
	MirrorLimit    int64  `mapstructure:"mirrorLimit"`
}

// SetDefaults registers the values used when neither a flag, the
// environment nor a config file sets a key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(VerboseKey, 2)
	v.SetDefault(CapacityKey, fakefs.DefaultCapacity)
	v.SetDefault(SectorsPerClusterKey, fakefs.DefaultSectorsPerCluster)
	v.SetDefault(DataStartKey, fakefs.DefaultDataStart)
	v.SetDefault(FixturesKey, true)
	v.SetDefault(OverlaySectorsKey, disk.DefaultOverlayCapacity)
	v.SetDefault(MirrorLimitKey, 0)
}

// FromViper reads the config file named by the config key, if any, and
// decodes every setting.
func FromViper(v *viper.Viper) (*Config, error) {
	if file := v.GetString(ConfigKey); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "could not read config file %v", file)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Capacity < 1:
		return errors.Errorf("%v must be positive, got %d", CapacityKey, c.Capacity)
	case c.SectorsPerCluster < 1:
		return errors.Errorf("%v must be positive, got %d", SectorsPerClusterKey, c.SectorsPerCluster)
	case c.OverlaySectors < 1:
		return errors.Errorf("%v must be positive, got %d", OverlaySectorsKey, c.OverlaySectors)
	case c.MirrorLimit < 0:
		return errors.Errorf("%v must not be negative, got %d", MirrorLimitKey, c.MirrorLimit)
	}

	return nil
}

func (c *Config) StoreOptions(clock timeutil.Clock, log logging.StructuredLogger) fakefs.Options {
	opts := fakefs.Options{
		Capacity:          c.Capacity,
		SectorsPerCluster: c.SectorsPerCluster,
		DataStart:         c.DataStart,
		Clock:             clock,
		Logger:            log,
	}
	if c.Fixtures {
		opts.Fixtures = fakefs.DefaultFixtures()
	}

	return opts
}

// DiskOptions reads the image named by the config from fs.
func (c *Config) DiskOptions(fs afero.Fs, log logging.StructuredLogger) disk.Options {
	opts := disk.Options{
		OverlayCapacity: c.OverlaySectors,
		MirrorLimit:     c.MirrorLimit,
		Logger:          log,
	}
	if c.Image != "" {
		opts.Source = disk.NewFileSource(fs, c.Image)
	}

	return opts
}
