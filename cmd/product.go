package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

func productCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage the active owner's catalog",
	}
	cmd.AddCommand(productAddCmd())
	cmd.AddCommand(productListCmd())
	return cmd
}

func productAddCmd() *cobra.Command {
	var (
		name     string
		price    float64
		currency string
		photo    string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if price < 0 {
				return fmt.Errorf("--price must not be negative")
			}

			db, stores, err := openStores()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			owner, err := stores.Owners.ActiveOwner(ctx)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no active owner (run: shopclaw owner set)")
			}
			if err != nil {
				return err
			}

			id, err := stores.Catalog.AddProduct(ctx, &store.Product{
				OwnerID:  owner.ID,
				Name:     name,
				Price:    price,
				Currency: currency,
				PhotoURL: photo,
				Active:   true,
			})
			if err != nil {
				return fmt.Errorf("add product: %w", err)
			}
			fmt.Printf("product %q added (id %d, %.2f %s)\n", name, id, price, currency)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().Float64Var(&price, "price", 0, "unit price")
	cmd.Flags().StringVar(&currency, "currency", "USD", "price currency")
	cmd.Flags().StringVar(&photo, "photo", "", "product photo URL")
	return cmd
}

func productListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active owner's products",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, stores, err := openStores()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			owner, err := stores.Owners.ActiveOwner(ctx)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no active owner (run: shopclaw owner set)")
			}
			if err != nil {
				return err
			}

			products, err := stores.Catalog.ListProducts(ctx, owner.ID)
			if err != nil {
				return err
			}
			if len(products) == 0 {
				fmt.Println("catalog is empty (run: shopclaw product add)")
				return nil
			}
			for _, p := range products {
				fmt.Printf("  %-4d %-30s %10.2f %s\n", p.ID, p.Name, p.Price, p.Currency)
			}
			return nil
		},
	}
}
