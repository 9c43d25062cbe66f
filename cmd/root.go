package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-signin",
	Short: "Face recognition sign-in for building kiosks",
	Long: `Face Sign-in registers residents and visitors from a camera photo and
signs them in later by matching a new capture against the registered faces.

It runs as an HTTP service for the kiosk (serve) and offers operator
commands for registering, searching and re-encoding clients.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
