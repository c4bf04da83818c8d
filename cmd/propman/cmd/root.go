package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "propman",
	Short: "Property management client and development API",
	Long: `Client tooling for the property management service: an authenticated
API client with CSRF/JWT session handling, and a development stub of the
REST API for local work.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
