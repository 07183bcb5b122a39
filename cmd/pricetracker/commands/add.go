package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().Float64("target", 0, "Alert when the price drops to or below this.")
	addCmd.Flags().Bool("no-compare", false, "Do not search other retailers for the same product.")
}

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Start tracking a product page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		service := env.service

		var target *float64
		if cmd.Flags().Changed("target") {
			value, _ := cmd.Flags().GetFloat64("target")
			target = &value
		}

		product, err := service.AddProduct(ctx, args[0], target)
		if err != nil {
			return err
		}
		fmt.Printf("Added %q (#%d) at %s.\n", product.Name, product.ID, formatPrice(product.Currency, product.CurrentPrice))

		noCompare, _ := cmd.Flags().GetBool("no-compare")
		if noCompare {
			return nil
		}
		result, err := service.AutoCompare(ctx, product.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Comparison group %s: added %d listings from other retailers.\n", result.GroupID, len(result.Added))
		if len(result.Added) == 0 {
			return nil
		}
		t := newTable()
		t.AppendHeader(productHeader)
		for _, p := range result.Added {
			t.AppendRow(productRow(p))
		}
		t.Render()
		return nil
	},
}
