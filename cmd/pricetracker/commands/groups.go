package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupShowCmd)
	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupSetCmd)
	groupCmd.AddCommand(groupRemoveCmd)
	groupCmd.AddCommand(groupCompareCmd)
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List comparison groups.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := env.service.Grouper().AllGroups(cmd.Context())
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No comparison groups yet.")
			return nil
		}
		t := newTable()
		t.AppendHeader(table.Row{"Group", "Members", "Name"})
		for _, g := range groups {
			t.AppendRow(table.Row{g.ID, g.MemberCount, g.RepresentativeName})
		}
		t.Render()
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Inspect and curate comparison groups.",
}

var groupShowCmd = &cobra.Command{
	Use:   "show <group id>",
	Short: "Compare the members of a group, cheapest first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comparison, err := env.service.Compare(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		t := newTable()
		t.AppendHeader(productHeader)
		for _, p := range comparison.Members {
			t.AppendRow(productRow(p))
		}
		t.Render()
		if comparison.Best != nil {
			fmt.Printf(
				"Best price: %s on %s, %.2f cheaper than the most expensive listing.\n",
				formatPrice(comparison.Best.Currency, comparison.Best.CurrentPrice),
				comparison.Best.Retailer.Title(),
				comparison.Savings,
			)
		}
		return nil
	},
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name> <product id>...",
	Short: "Put products into a group named by you.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args)-1)
		for _, arg := range args[1:] {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		groupID, err := env.service.CreateComparison(cmd.Context(), args[0], ids)
		if err != nil {
			return err
		}
		fmt.Printf("Created comparison group %s.\n", groupID)
		return nil
	},
}

var groupSetCmd = &cobra.Command{
	Use:   "set <product id> <group id>",
	Short: "Move a product into an existing group.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return env.service.Grouper().SetGroup(cmd.Context(), id, args[1])
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <product id>",
	Short: "Take a product out of its group.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return env.service.Grouper().Ungroup(cmd.Context(), id)
	},
}

var groupCompareCmd = &cobra.Command{
	Use:   "compare <product id>",
	Short: "Search other retailers for a tracked product and group what is found with it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		result, err := env.service.AutoCompare(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf(
			"Comparison group %s: added %d, skipped %d.\n",
			result.GroupID, len(result.Added), len(result.Skipped),
		)
		return nil
	},
}
