// Command imagecd drives the engine from the command line: run a batch
// analysis, request a graceful stop, or poll a running job's state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "imagecd",
	Short:         "imagec pipeline execution engine",
	Long:          `imagecd plans, executes and commits microscopy image-analysis pipelines against a settings document and a directory of images.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to imagec engine config (yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(stateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
