package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// artifactsCommand creates the artifacts command group for stored run
// records.
func (c *CLI) artifactsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Manage stored run records",
	}

	cmd.AddCommand(c.artifactsListCommand())
	cmd.AddCommand(c.artifactsShowCommand())
	cmd.AddCommand(c.artifactsBrowseCommand())
	cmd.AddCommand(c.artifactsDeleteCommand())

	return cmd
}

func (c *CLI) artifactsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadSettings()
			if err != nil {
				return err
			}
			store, err := c.newStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			ids, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				printInfo("No stored runs")
				return nil
			}
			for _, id := range ids {
				rec, err := store.Get(ctx, id)
				if err != nil {
					printDetail("%s (unreadable: %v)", id, err)
					continue
				}
				fmt.Printf("%s  %s  %s  %d nodes / %d edges\n",
					rec.CreatedAt.Format("2006-01-02 15:04"),
					id, rec.Engine, rec.NodeCount, rec.EdgeCount)
			}
			return nil
		},
	}
}

func (c *CLI) artifactsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the DOT text of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadSettings()
			if err != nil {
				return err
			}
			store, err := c.newStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			rec, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Print(rec.DOT)
			return nil
		},
	}
}

func (c *CLI) artifactsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadSettings()
			if err != nil {
				return err
			}
			store, err := c.newStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Deleted %s", args[0])
			return nil
		},
	}
}
