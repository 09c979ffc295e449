package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakWai01/sile-fakefs/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "sile-fakefs",
	Short: "sile-fakefs, an emulated FAT storage stack",
	Long: `sile-fakefs emulates the storage of a flash cart: an in-memory FAT-style
filesystem that can be mounted through FUSE and a sector store over a disk image.

For more information, please visit https://github.com/JakWai01/sile-fakefs`,
}

func Execute() error {
	rootCmd.PersistentFlags().IntP(config.VerboseKey, "v", 2, fmt.Sprintf("Verbosity level, one of %v", []int{0, 1, 2, 3, 4, 5}))
	rootCmd.PersistentFlags().StringP(config.ConfigKey, "c", "", "Config file to read settings from")
	storeFlags(rootCmd)

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()

	return rootCmd.Execute()
}

// storeFlags configure the node tree used by mount and tree.
func storeFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Int(config.CapacityKey, 64, "Number of node slots, the root included")
	cmd.PersistentFlags().Int(config.SectorsPerClusterKey, 4, "Sectors per synthetic cluster")
	cmd.PersistentFlags().Uint32(config.DataStartKey, 2048, "First sector of the data region")
	cmd.PersistentFlags().Bool(config.FixturesKey, true, "Populate the default card layout on mount")
}

func loadConfig() (*config.Config, error) {
	config.SetDefaults(viper.GetViper())

	return config.FromViper(viper.GetViper())
}

func init() {
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(sectorsCmd)
}
