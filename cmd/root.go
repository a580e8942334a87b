package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "azul-payments",
	Short: "Azul 3-D Secure payments microservice",
	Long:  "A payments microservice driving Azul card authorizations through the 3-D Secure method and challenge steps.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
