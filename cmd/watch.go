package cmd

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of all scenes and assets that rescans on every change",
	Long: `Watch scans the enabled scenes and every asset, then keeps watching the
project directory. Whenever project files settle after a change the project is
reloaded and scanned again, superseding a scan still in progress.

Examples:
  refscan watch                      # Interactive view of the current project
  refscan watch -p games/demo        # Watch another project
  refscan watch -o cli               # Print a report after every change`,
	Args: cobra.NoArgs,
	Annotations: map[string]string{
		"output": "tui",
		"watch":  "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, allRoots)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
