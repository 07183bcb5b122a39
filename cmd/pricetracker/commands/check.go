package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("group", "", "Only check the members of this comparison group.")
}

var checkCmd = &cobra.Command{
	Use:   "check [product id]",
	Short: "Check prices now, for one product, one group or every active product.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		service := env.service
		group, _ := cmd.Flags().GetString("group")

		if len(args) == 1 {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			product, err := service.Store().GetProduct(ctx, id)
			if err != nil {
				return err
			}
			obs, err := service.CheckPriceNow(ctx, product)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s %.2f\n", product.Name, product.Currency, obs.Price)
			return nil
		}

		var (
			updated int
			err     error
		)
		if group != "" {
			updated, err = service.RunGroupCheck(ctx, group)
		} else {
			updated, err = service.RunFullCheck(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Updated prices for %d products.\n", updated)
		return nil
	},
}
