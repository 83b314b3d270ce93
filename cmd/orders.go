package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func ordersCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "orders <conversation-id>",
		Short: "List recent orders for a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, stores, err := openStores()
			if err != nil {
				return err
			}
			defer db.Close()

			orders, err := stores.Orders.OrdersForConversation(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				fmt.Println("no orders for this conversation")
				return nil
			}
			for _, o := range orders {
				fmt.Printf("  #%-4d %-10s %10.2f  %s  %s\n",
					o.ID, o.Status, o.Total, o.CreatedAt.Format("2006-01-02 15:04"), o.CustomerName)
				for _, item := range o.Items {
					fmt.Printf("         %dx %s @ %.2f\n", item.Quantity, item.Name, item.UnitPrice)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum orders to show")
	return cmd
}
