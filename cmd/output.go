package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/kozaktomas/face-signin/internal/registry"
)

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printClients writes a client table to out.
func printClients(out io.Writer, clients []registry.Client) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tUNIT\tBUILDING\tSTATUS")
	fmt.Fprintln(w, "--\t----\t-----\t----\t--------\t------")

	for i := range clients {
		c := &clients[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.FullName(), c.Email, c.UnitNumber, c.BuildingName, formatStatus(c.Status))
	}
	w.Flush()
}

// formatStatus lists the set flags in registry.StatusKeys order, unknown flags last.
func formatStatus(status map[string]bool) string {
	var set, extra []string
	for _, key := range registry.StatusKeys {
		if status[key] {
			set = append(set, key)
		}
	}
	for flag, on := range status {
		if on && !slices.Contains(registry.StatusKeys, flag) {
			extra = append(extra, flag)
		}
	}
	sort.Strings(extra)
	set = append(set, extra...)
	if len(set) == 0 {
		return "-"
	}
	return strings.Join(set, ",")
}

func printTasks(out io.Writer, tasks []registry.Task) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tDATE\tREPEAT\tACTIVE\tDESCRIPTION")
	fmt.Fprintln(w, "--\t----\t----\t------\t------\t-----------")
	for _, t := range tasks {
		repeat := "-"
		if len(t.RepeatDays) > 0 {
			repeat = strings.Join(t.RepeatDays, ",")
		}
		active := "yes"
		if t.Disabled {
			active = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Type, t.Date.Format("2006-01-02 15:04"), repeat, active, t.Description)
	}
	w.Flush()
}

func readImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}
