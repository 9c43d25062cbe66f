package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-signin/internal/facematch"
	"github.com/kozaktomas/face-signin/internal/registry"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Browse the client directory",
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered clients",
	RunE:  runClientsList,
}

var clientsSearchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Search clients by name",
	Long: `Search clients by first, last or full name. Matching ignores case
and diacritics, so "novakova" finds "Nováková".`,
	Args: cobra.ExactArgs(1),
	RunE: runClientsSearch,
}

var clientsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a client with its face data, tasks and photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientsDelete,
}

var clientsTasksCmd = &cobra.Command{
	Use:   "tasks <id>",
	Short: "List a client's tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientsTasks,
}

func init() {
	rootCmd.AddCommand(clientsCmd)
	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsSearchCmd)
	clientsCmd.AddCommand(clientsDeleteCmd)
	clientsCmd.AddCommand(clientsTasksCmd)

	clientsCmd.PersistentFlags().Bool("json", false, "Output as JSON")
}

func runClientsList(cmd *cobra.Command, args []string) error {
	return listClients(cmd, func(ctx context.Context, dir registry.Directory) ([]registry.Client, error) {
		return dir.ListClients(ctx)
	})
}

func runClientsSearch(cmd *cobra.Command, args []string) error {
	return listClients(cmd, func(ctx context.Context, dir registry.Directory) ([]registry.Client, error) {
		return dir.SearchClients(ctx, args[0])
	})
}

func listClients(cmd *cobra.Command, fetch func(context.Context, registry.Directory) ([]registry.Client, error)) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	clients, err := fetch(ctx, a.store)
	if err != nil {
		return fmt.Errorf("failed to get clients: %w", err)
	}

	if mustGetBool(cmd, "json") {
		if clients == nil {
			clients = []registry.Client{}
		}
		return outputJSON(clients)
	}
	if len(clients) == 0 {
		fmt.Println("No clients found.")
		return nil
	}

	printClients(os.Stdout, clients)
	fmt.Printf("\nTotal: %d clients\n", len(clients))
	return nil
}

func runClientsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.initIndex(ctx)
	id := facematch.Identity(args[0])
	if err := a.service.DeleteClient(ctx, id); err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	a.saveIndex()

	fmt.Printf("Deleted client %s\n", id)
	return nil
}

func runClientsTasks(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := a.store.ListTasks(ctx, facematch.Identity(args[0]))
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(tasks)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}
	printTasks(os.Stdout, tasks)
	return nil
}
