package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storefront-smoke",
	Short: "Resilient end-to-end smoke tests for a Magento-style storefront",
	Long: `storefront-smoke drives a real browser through search, cart and checkout
scenarios. Every step is retried with session recovery and captures a
screenshot when it fails.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (overrides SUITE_CONFIG)")
}
