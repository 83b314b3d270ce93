package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/shopclaw/internal/config"
	"github.com/nextlevelbuilder/shopclaw/internal/store"
	"github.com/nextlevelbuilder/shopclaw/internal/store/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("shopclaw doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, defaults + env apply)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	// Secrets
	fmt.Println()
	fmt.Println("  Secrets:")
	checkSecret("Telegram token", cfg.Telegram.Token)
	checkSecret("AI API key", cfg.AI.APIKey)
	checkSecret("Store key", cfg.Store.EncryptionKey)

	// Telegram
	fmt.Println()
	fmt.Println("  Telegram:")
	fmt.Printf("    %-12s %s\n", "Mode:", cfg.Telegram.Mode)
	if cfg.Telegram.Mode == "webhook" {
		fmt.Printf("    %-12s %s%s\n", "Webhook:", cfg.Telegram.WebhookListen, cfg.Telegram.WebhookPath)
		checkSecret("    Webhook secret", cfg.Telegram.WebhookSecret)
	}

	// AI
	fmt.Println()
	fmt.Println("  AI:")
	fmt.Printf("    %-12s %s\n", "Model:", cfg.AI.Model)
	if cfg.AI.BaseURL != "" {
		fmt.Printf("    %-12s %s\n", "Base URL:", cfg.AI.BaseURL)
	}

	// Store
	fmt.Println()
	fmt.Println("  Store:")
	storePath := config.ExpandHome(cfg.Store.Path)
	fmt.Printf("    %-12s %s\n", "Path:", storePath)
	db, err := sqlite.Open(storePath, cfg.Store.EncryptionKey)
	if err != nil {
		fmt.Printf("    %-12s OPEN FAILED (%s)\n", "Status:", err)
		return
	}
	defer db.Close()
	fmt.Printf("    %-12s OK\n", "Status:")

	stores := db.Stores()
	ctx := context.Background()
	owner, err := stores.Owners.ActiveOwner(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Printf("    %-12s none (run: shopclaw owner set)\n", "Owner:")
	case err != nil:
		fmt.Printf("    %-12s ERROR (%s)\n", "Owner:", err)
	default:
		fmt.Printf("    %-12s %s (lang %s)\n", "Owner:", owner.Name, owner.Language)
		products, perr := stores.Catalog.ListProducts(ctx, owner.ID)
		if perr == nil {
			fmt.Printf("    %-12s %d products\n", "Catalog:", len(products))
		}
	}
}

func checkSecret(name, value string) {
	status := "MISSING"
	if value != "" {
		status = "set"
	}
	fmt.Printf("    %-16s %s\n", name+":", status)
}
