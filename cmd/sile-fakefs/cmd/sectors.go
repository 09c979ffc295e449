package cmd

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"log"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakWai01/sile-fakefs/internal/config"
	"github.com/JakWai01/sile-fakefs/internal/logging"
	"github.com/JakWai01/sile-fakefs/pkg/disk"
)

const (
	lbaFlag   = "lba"
	countFlag = "count"
	fillFlag  = "fill"
)

var sectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "Serve sectors of a disk image and hex-dump them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Image == "" {
			return errors.Errorf("--%v is required", config.ImageKey)
		}

		store := disk.NewStore(cfg.DiskOptions(afero.NewOsFs(), logging.NewJSONLogger(cfg.Verbose)))

		return dumpSectors(cmd.OutOrStdout(), store, sectorRequest{
			lba:   viper.GetUint32(lbaFlag),
			count: viper.GetUint32(countFlag),
			fill:  viper.GetInt(fillFlag),
		})
	},
}

type sectorRequest struct {
	lba   uint32
	count uint32

	// fill overwrites the sectors with this byte first; negative skips the write.
	fill int
}

// dumpSectors serves req through a diskio drive over store and hex-dumps the
// sectors read back.
func dumpSectors(w io.Writer, store *disk.Store, req sectorRequest) error {
	drive := disk.NewDrive(store, nil)

	if status := drive.Initialize(); status != 0 {
		return errors.Wrapf(store.Init(), "drive status %#x", status)
	}

	sectors, err := store.SectorCount()
	if err != nil {
		return err
	}
	if req.count == 0 || uint64(req.lba)+uint64(req.count) > uint64(sectors) {
		return errors.Errorf("sectors %d+%d outside of image with %d sectors", req.lba, req.count, sectors)
	}

	buf := make([]byte, int(req.count)*disk.SectorSize)

	if req.fill >= 0 {
		copy(buf, bytes.Repeat([]byte{byte(req.fill)}, len(buf)))

		if res := drive.Write(buf, req.lba, req.count); res != disk.ResOK {
			return errors.Errorf("write failed: %v", res)
		}
	}

	if res := drive.Read(buf, req.lba, req.count); res != disk.ResOK {
		return errors.Errorf("read failed: %v", res)
	}

	used, capacity := store.OverlayUsage()
	fmt.Fprintf(w, "mode %v, overlay %d/%d\n", store.Mode(), used, capacity)

	dumper := hex.Dumper(w)
	if _, err := dumper.Write(buf); err != nil {
		return err
	}

	return dumper.Close()
}

func init() {
	sectorsCmd.PersistentFlags().String(config.ImageKey, "", "Disk image to serve")
	sectorsCmd.PersistentFlags().Uint32(lbaFlag, 0, "First sector to read")
	sectorsCmd.PersistentFlags().Uint32(countFlag, 1, "Number of sectors to read")
	sectorsCmd.PersistentFlags().Int(fillFlag, -1, "Overwrite the sectors with this byte before reading")
	sectorsCmd.PersistentFlags().Int(config.OverlaySectorsKey, disk.DefaultOverlayCapacity, "Capacity of the sector overlay")
	sectorsCmd.PersistentFlags().Int64(config.MirrorLimitKey, 0, "Largest image mirrored in memory, in bytes; 0 means no limit")

	if err := viper.BindPFlags(sectorsCmd.PersistentFlags()); err != nil {
		log.Fatal("could not bind flags:", err)
	}
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
}
