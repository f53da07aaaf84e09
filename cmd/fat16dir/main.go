package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xrgtn/fat16dir/internal/utils/logger"
)

var logLevel string

func newRootCommand() *cobra.Command {
	cmd := createListCommand()

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return logger.SetLevel(logLevel)
	}
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
