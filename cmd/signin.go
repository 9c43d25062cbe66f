package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-signin/internal/signin"
)

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with a photo",
	Long: `Match a photo against the registered clients, exactly as the kiosk does.

Examples:
  face-signin signin --image capture.jpg
  face-signin signin --image capture.jpg --json`,
	RunE: runSignin,
}

func init() {
	rootCmd.AddCommand(signinCmd)

	signinCmd.Flags().String("image", "", "Path to the captured photo")
	signinCmd.Flags().Bool("json", false, "Output as JSON")
	_ = signinCmd.MarkFlagRequired("image")
}

func runSignin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	image, err := readImage(mustGetString(cmd, "image"))
	if err != nil {
		return err
	}

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.SignIn(ctx, image)
	if errors.Is(err, signin.ErrRetryCapture) {
		return errors.New("no face detected, capture again")
	}
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(result)
	}
	if !result.Granted {
		fmt.Printf("Access denied (best score %.3f)\n", result.Score)
		return nil
	}
	fmt.Printf("Welcome, %s (score %.3f)\n", result.Client.FullName(), result.Score)
	fmt.Printf("Client ID: %s\n", result.Client.ID)
	return nil
}
