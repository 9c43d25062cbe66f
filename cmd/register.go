package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-signin/internal/signin"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new client from a photo",
	Long: `Register a new client. The photo must contain a face that is not
already registered.

Example:
  face-signin register --image ada.jpg --first-name Ada --last-name Lovelace \
    --email ada@example.com --unit 4B --building "North Tower"`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("image", "", "Path to the profile photo")
	registerCmd.Flags().String("first-name", "", "First name")
	registerCmd.Flags().String("last-name", "", "Last name")
	registerCmd.Flags().String("email", "", "Email address")
	registerCmd.Flags().String("role", "", "Role, e.g. resident or visitor")
	registerCmd.Flags().String("unit", "", "Unit number")
	registerCmd.Flags().String("building", "", "Building name")
	registerCmd.Flags().Bool("json", false, "Output as JSON")
	_ = registerCmd.MarkFlagRequired("image")
}

func runRegister(cmd *cobra.Command, args []string) error {
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
	defer a.saveIndex()

	client, err := a.service.Register(ctx, signin.NewClient{
		FirstName:    mustGetString(cmd, "first-name"),
		LastName:     mustGetString(cmd, "last-name"),
		Email:        mustGetString(cmd, "email"),
		Role:         mustGetString(cmd, "role"),
		UnitNumber:   mustGetString(cmd, "unit"),
		BuildingName: mustGetString(cmd, "building"),
	}, image)

	var dup *signin.DuplicateError
	if errors.As(err, &dup) {
		return fmt.Errorf("face already registered as %s (score %.3f)", dup.Identity, dup.Score)
	}
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(client)
	}
	fmt.Printf("Registered %s with ID %s\n", client.FullName(), client.ID)
	return nil
}
