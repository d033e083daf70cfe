package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "postflowd",
	Short:         "Content publishing pipeline daemon",
	Long:          "postflowd runs the PostFlow publishing pipeline: the background job queue, the content approval queue, the publish scheduler, and the HTTP API in one process.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
