package cmd

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/timeutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakWai01/sile-fakefs/internal/config"
	"github.com/JakWai01/sile-fakefs/internal/logging"
	"github.com/JakWai01/sile-fakefs/pkg/fakefs"
	"github.com/JakWai01/sile-fakefs/pkg/filesystem"
	"github.com/JakWai01/sile-fakefs/pkg/posix"
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount the emulated card on a given path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		l := logging.NewJSONLogger(cfg.Verbose)

		if err := os.MkdirAll(cfg.Mountpoint, os.ModePerm); err != nil {
			return err
		}

		serve, err := newServer(cfg, timeutil.RealClock(), l)
		if err != nil {
			return err
		}

		mountCfg := &fuse.MountConfig{
			FSName:                    "sile-fakefs",
			ReadOnly:                  false,
			DisableDefaultPermissions: false,
		}

		fuse.Unmount(cfg.Mountpoint)
		mfs, err := fuse.Mount(cfg.Mountpoint, serve, mountCfg)
		if err != nil {
			log.Fatalf("Mount: %v", err)
		}

		l.Info("Mounted", map[string]interface{}{
			"mountpoint": cfg.Mountpoint,
		})

		if err := mfs.Join(context.Background()); err != nil {
			log.Fatalf("Join %v", err)
		}

		return nil
	},
}

// newServer mounts a fresh store for cfg and wraps it in a FUSE server.
func newServer(cfg *config.Config, clock timeutil.Clock, l logging.StructuredLogger) (fuse.Server, error) {
	store := fakefs.New(cfg.StoreOptions(clock, l))
	if err := store.Mount(); err != nil {
		return nil, err
	}

	return filesystem.NewFileSystem(posix.CurrentUid(), posix.CurrentGid(), store, l, clock, func(err interface{}) { panic(err) }), nil
}

func init() {
	mountPath := filepath.Join(os.TempDir(), "sile-fakefs")
	if home, err := os.UserHomeDir(); err == nil {
		mountPath = filepath.Join(home, "Documents", "mount")
	}

	mountCmd.PersistentFlags().String(config.MountpointKey, mountPath, "Mountpoint")

	if err := viper.BindPFlags(mountCmd.PersistentFlags()); err != nil {
		log.Fatal("could not bind flags:", err)
	}
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
}
