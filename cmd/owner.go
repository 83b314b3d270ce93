package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/shopclaw/internal/config"
	"github.com/nextlevelbuilder/shopclaw/internal/store"
	"github.com/nextlevelbuilder/shopclaw/internal/store/sqlite"
)

func ownerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage the shop owner",
	}
	cmd.AddCommand(ownerSetCmd())
	cmd.AddCommand(ownerShowCmd())
	return cmd
}

func ownerSetCmd() *cobra.Command {
	var (
		name     string
		token    string
		language string
		activate bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update the shop owner and optionally activate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if token == "" {
				token = os.Getenv("SHOPCLAW_OWNER_TOKEN")
			}

			db, stores, err := openStores()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			id, err := stores.Owners.UpsertOwner(ctx, &store.Owner{
				Name:           name,
				Language:       language,
				EncryptedToken: token,
			})
			if err != nil {
				return fmt.Errorf("save owner: %w", err)
			}
			fmt.Printf("owner %q saved (id %d)\n", name, id)

			if activate {
				if err := stores.Owners.Activate(ctx, id); err != nil {
					return fmt.Errorf("activate owner: %w", err)
				}
				fmt.Printf("owner %q is now active\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "shop name (upsert key)")
	cmd.Flags().StringVar(&token, "token", "", "platform token (default: $SHOPCLAW_OWNER_TOKEN; empty keeps the stored one)")
	cmd.Flags().StringVar(&language, "language", "en", "reply language code (en, es, vi, ...)")
	cmd.Flags().BoolVar(&activate, "activate", true, "make this the active owner")
	return cmd
}

func ownerShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, stores, err := openStores()
			if err != nil {
				return err
			}
			defer db.Close()

			owner, err := stores.Owners.ActiveOwner(context.Background())
			if errors.Is(err, store.ErrNotFound) {
				fmt.Println("no active owner (run: shopclaw owner set)")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("  Name:       %s (id %d)\n", owner.Name, owner.ID)
			fmt.Printf("  Language:   %s\n", owner.Language)
			fmt.Printf("  Token:      %s\n", maskToken(owner.EncryptedToken))
			if !owner.ActivatedAt.IsZero() {
				fmt.Printf("  Activated:  %s\n", owner.ActivatedAt.Format("2006-01-02 15:04:05 MST"))
			}
			return nil
		},
	}
}

// openStores loads config and opens the SQLite-backed stores for CLI use.
func openStores() (*sqlite.DB, store.Stores, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, store.Stores{}, fmt.Errorf("load config: %w", err)
	}
	db, err := sqlite.Open(config.ExpandHome(cfg.Store.Path), cfg.Store.EncryptionKey)
	if err != nil {
		return nil, store.Stores{}, fmt.Errorf("open store: %w", err)
	}
	return db, db.Stores(), nil
}

func maskToken(token string) string {
	if token == "" {
		return "(none)"
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
