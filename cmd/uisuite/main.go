package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var env string
	root := &cobra.Command{
		Use:          "uisuite",
		Short:        "Run and serve the OnlyTests UI suite",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if env != "" {
				return os.Setenv("TEST_ENV", env)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&env, "env", "e", "", "profile to load (overrides TEST_ENV)")

	root.AddCommand(validateCmd(), initCmd(), smokeCmd(), serveCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "uisuite "+version)
		},
	}
}
