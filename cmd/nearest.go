package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-signin/internal/facematch"
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Show the registered clients closest to a photo",
	Long: `Show the k registered clients whose faces are closest to the photo.

This is a diagnostic for calibrating MATCH_THRESHOLD; it never grants access.
By default it queries the approximate HNSW index (vector encodings only).
Use --exact to score the whole gallery with the configured metric instead.

Examples:
  face-signin nearest --image capture.jpg
  face-signin nearest --image capture.jpg --k 10 --exact`,
	RunE: runNearest,
}

func init() {
	rootCmd.AddCommand(nearestCmd)

	nearestCmd.Flags().String("image", "", "Path to the photo")
	nearestCmd.Flags().Int("k", 5, "Number of clients to show")
	nearestCmd.Flags().Bool("exact", false, "Linear scan with the configured metric instead of the HNSW index")
	nearestCmd.Flags().Bool("json", false, "Output as JSON")
	_ = nearestCmd.MarkFlagRequired("image")
}

// NearestResult is one row of nearest output.
type NearestResult struct {
	ClientID facematch.Identity `json:"client_id"`
	Name     string             `json:"name"`
	Score    float64            `json:"score"`
}

func runNearest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	image, err := readImage(mustGetString(cmd, "image"))
	if err != nil {
		return err
	}
	k := mustGetInt(cmd, "k")

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	var results []NearestResult
	if mustGetBool(cmd, "exact") {
		ranked, err := a.service.Rank(ctx, image, k)
		if err != nil {
			return err
		}
		for _, r := range ranked {
			results = append(results, NearestResult{ClientID: r.Identity, Score: r.Score})
		}
	} else {
		a.initIndex(ctx)
		neighbors, err := a.service.Nearest(ctx, image, k)
		if err != nil {
			return err
		}
		for _, n := range neighbors {
			results = append(results, NearestResult{ClientID: n.Identity, Score: n.Similarity})
		}
	}

	for i := range results {
		if client, err := a.store.GetClient(ctx, results[i].ClientID); err == nil {
			results[i].Name = client.FullName()
		}
	}

	if mustGetBool(cmd, "json") {
		if results == nil {
			results = []NearestResult{}
		}
		return outputJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No registered clients to compare against.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\tCLIENT\tNAME")
	fmt.Fprintln(w, "----\t-----\t------\t----")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", i+1, r.Score, r.ClientID, r.Name)
	}
	w.Flush()
	return nil
}
