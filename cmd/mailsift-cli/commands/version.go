package commands

import (
	"github.com/spf13/cobra"
)

var version string

// SetVersion records the build version, stamped in by the linker
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("mailsift-cli %s\n", version)
		},
	})
}
