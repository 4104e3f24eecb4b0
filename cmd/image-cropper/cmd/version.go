package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	imagecropper "github.com/menta2k/image-cropper"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "image-cropper %s (%s, %s/%s)\n",
			imagecropper.GetVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
