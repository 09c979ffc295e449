package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jacobsa/timeutil"
	"github.com/spf13/cobra"

	"github.com/JakWai01/sile-fakefs/internal/logging"
	"github.com/JakWai01/sile-fakefs/pkg/fakefs"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Mount a fresh store and print its tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := fakefs.New(cfg.StoreOptions(timeutil.RealClock(), logging.NewJSONLogger(cfg.Verbose)))
		if err := store.Mount(); err != nil {
			return err
		}

		root := "/"
		if len(args) > 0 {
			root = args[0]
		}

		return printTree(cmd.OutOrStdout(), store, root, 0)
	},
}

// printTree lists p and everything below it, one node per line. Files show
// their size and first cluster.
func printTree(w io.Writer, store *fakefs.Store, p string, depth int) error {
	dir, err := store.OpenDir(p)
	if err != nil {
		return err
	}
	defer dir.Close()

	children, err := dir.ReadAll()
	if err != nil {
		return err
	}

	indent := strings.Repeat("  ", depth)
	for _, child := range children {
		if child.IsDir() {
			fmt.Fprintf(w, "%v%v/\n", indent, child.Name())

			if err := printTree(w, store, strings.TrimSuffix(p, "/")+"/"+child.Name(), depth+1); err != nil {
				return err
			}

			continue
		}

		fmt.Fprintf(w, "%v%v\t%d bytes\tcluster %d\n", indent, child.Name(), child.Size(), child.StartCluster())
	}

	return nil
}
