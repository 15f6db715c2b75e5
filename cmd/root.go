package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay - portfolio chat and analytics webhook backend",
	Long:  `Relay serves a portfolio site's chat webhook: visitor questions are rate limited, enriched with a knowledge base, and proxied to a generative-language API with credential and model fallback.`,
}

func Execute() error {
	return rootCmd.Execute()
}
