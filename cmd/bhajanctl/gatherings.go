package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/derWhity/bhajanbook/internal/festival"
)

func newGatheringCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gathering",
		Aliases: []string{"g"},
		Short:   "Manage gatherings",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all gatherings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gatherings, err := a.client.Gatherings(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLOCATION\tTYPE")
			for _, g := range gatherings {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.ID, g.Name, g.Location, g.Type)
			}
			return tw.Flush()
		},
	}

	var location, description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a user event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.client.CreateGathering(cmd.Context(), args[0], location, description)
			if err != nil {
				return err
			}
			printf(cmd, "Created gathering %s (%s)\n", g.ID, g.Name)
			return nil
		},
	}
	create.Flags().StringVar(&location, "location", "", "Where the gathering takes place")
	create.Flags().StringVar(&description, "description", "", "Free text description")

	rename := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a user event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.client.RenameGathering(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printf(cmd, "Gathering %s is now called %s\n", g.ID, g.Name)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a gathering together with its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteGathering(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "Deleted gathering %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, rename, del)
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <festival-date>",
		Short: "Suggest the session date for a festival (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := festival.ParseDate(args[0])
			if err != nil {
				return err
			}
			suggested, err := a.client.SuggestDate(cmd.Context(), date)
			if err != nil {
				return err
			}
			printf(cmd, "%s (%s)\n", suggested.Format(festival.DateLayout), suggested.Weekday())
			return nil
		},
	}
}
