package commands

import (
	"errors"
	"fmt"

	"pricetracker-backend/lib/pricestore"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().String("name", "", "New display name.")
	editCmd.Flags().String("url", "", "New product page url, the retailer is detected again.")
	editCmd.Flags().Float64("target", 0, "New target price.")
	editCmd.Flags().Bool("clear-target", false, "Stop alerting on this product.")
	editCmd.MarkFlagsMutuallyExclusive("target", "clear-target")
}

var editCmd = &cobra.Command{
	Use:   "edit <product id>",
	Short: "Change the name, url or target price of a tracked product.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		current, err := env.service.Store().GetProduct(ctx, id)
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		url, _ := cmd.Flags().GetString("url")
		target := current.TargetPrice
		if cmd.Flags().Changed("target") {
			value, _ := cmd.Flags().GetFloat64("target")
			target = &value
		}
		if clearTarget, _ := cmd.Flags().GetBool("clear-target"); clearTarget {
			target = nil
		}

		product, err := env.service.EditProduct(ctx, id, name, url, target)
		if errors.Is(err, pricestore.ErrDuplicateURL) {
			return fmt.Errorf("another tracked product already uses %s", url)
		}
		if err != nil {
			return err
		}
		t := newTable()
		t.AppendHeader(productHeader)
		t.AppendRow(productRow(product))
		t.Render()
		return nil
	},
}
