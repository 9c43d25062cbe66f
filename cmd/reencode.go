package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-signin/internal/photostore"
	"github.com/kozaktomas/face-signin/internal/registry"
)

var reencodeCmd = &cobra.Command{
	Use:   "reencode",
	Short: "Recompute every stored encoding with the active encoder",
	Long: `Recompute face encodings from the stored profile photos.

Run this after changing ENCODER_MODE or the detector model. Until a client is
re-encoded, their old encoding is invisible to sign-in with the new encoder.
Clients without a stored photo are skipped.

Examples:
  face-signin reencode
  face-signin reencode --concurrency 8`,
	RunE: runReencode,
}

func init() {
	rootCmd.AddCommand(reencodeCmd)

	reencodeCmd.Flags().Int("concurrency", 4, "Number of parallel detector calls")
}

func runReencode(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	clients, err := a.store.ListClients(ctx)
	if err != nil {
		return fmt.Errorf("failed to get clients: %w", err)
	}
	if len(clients) == 0 {
		fmt.Println("No clients to re-encode.")
		return nil
	}
	fmt.Printf("Re-encoding %d clients with the %s encoder\n", len(clients), a.service.Mode())

	bar := progressbar.NewOptions(len(clients),
		progressbar.OptionSetDescription("Re-encoding"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("clients"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var successCount, skippedCount int
	var failed []string
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range clients {
		wg.Add(1)
		go func(c *registry.Client) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := a.service.Reencode(ctx, c.ID)

			mu.Lock()
			switch {
			case err == nil:
				successCount++
			case errors.Is(err, photostore.ErrNotFound):
				skippedCount++
			default:
				failed = append(failed, fmt.Sprintf("%s (%s): %v", c.FullName(), c.ID, err))
			}
			mu.Unlock()
			bar.Add(1)
		}(&clients[i])
	}
	wg.Wait()
	bar.Finish()

	if err := a.service.RefreshIndex(ctx); err != nil {
		fmt.Printf("Warning: Failed to rebuild face HNSW index: %v\n", err)
	} else {
		a.saveIndex()
	}

	fmt.Printf("\nRe-encoded: %d, skipped (no photo): %d, failed: %d\n", successCount, skippedCount, len(failed))
	for _, f := range failed {
		fmt.Printf("  %s\n", f)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d clients could not be re-encoded", len(failed))
	}
	return nil
}
