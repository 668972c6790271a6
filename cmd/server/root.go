package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "pricecalc",
	Short:         "Pricing calculator API",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
}
