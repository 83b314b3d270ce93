// Package consultant runs one conversation turn end to end: resolve the
// shop owner, build the model prompt from catalog and history, call the
// AI, extract the intent and execute it.
package consultant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/shopclaw/internal/executor"
	"github.com/nextlevelbuilder/shopclaw/internal/intent"
	"github.com/nextlevelbuilder/shopclaw/internal/providers"
	"github.com/nextlevelbuilder/shopclaw/internal/retry"
	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// Config tunes the turn pipeline.
type Config struct {
	Currency        string
	HistoryLimit    int
	DefaultLanguage string
}

// Consultant orchestrates one turn per flushed conversation buffer.
type Consultant struct {
	provider  providers.Provider
	extractor *intent.Extractor
	executor  *executor.Executor
	stores    store.Stores
	cfg       Config
	log       *slog.Logger
}

// New wires the turn pipeline. The extractor's catalog lookup resolves
// against the active owner's products.
func New(provider providers.Provider, exec *executor.Executor, stores store.Stores, fallbackPrice float64, cfg Config) *Consultant {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	lookup := &catalogLookup{owners: stores.Owners, catalog: stores.Catalog}
	return &Consultant{
		provider:  provider,
		extractor: intent.NewExtractor(lookup, fallbackPrice),
		executor:  exec,
		stores:    stores,
		cfg:       cfg,
		log:       slog.Default().With("component", "consultant"),
	}
}

// HandleTurn answers one merged customer message. The error return means
// the turn could not even start (no active owner, token unreadable) and
// nothing should be sent; downstream failures degrade to an apology
// reply instead.
func (c *Consultant) HandleTurn(ctx context.Context, conversationID, merged string) (executor.Result, error) {
	owner, err := c.stores.Owners.ActiveOwner(ctx)
	if err != nil {
		return executor.Result{}, fmt.Errorf("resolve owner: %w", err)
	}

	products, err := c.stores.Catalog.ListProducts(ctx, owner.ID)
	if err != nil {
		c.log.Error("catalog load failed", "conversation", conversationID, "error", err)
	}
	history, err := c.stores.Messages.RecentMessages(ctx, conversationID, c.cfg.HistoryLimit)
	if err != nil {
		c.log.Error("history load failed", "conversation", conversationID, "error", err)
	}

	system := buildSystemPrompt(owner, products, c.cfg.Currency)
	raw, err := c.provider.Chat(ctx, buildMessages(system, history, merged))
	if err != nil {
		f := retry.Describe(err)
		c.log.Error("model call failed",
			"conversation", conversationID, "code", f.Code, "error", f.Description)
		return apology(owner, c.cfg.DefaultLanguage), nil
	}

	in := c.extractor.Extract(ctx, raw)
	c.log.Info("intent extracted", "conversation", conversationID, "kind", in.Kind)

	res, err := c.executor.Execute(ctx, owner, conversationID, merged, in)
	if err != nil {
		c.log.Error("intent execution failed",
			"conversation", conversationID, "kind", in.Kind, "error", err)
		return apology(owner, c.cfg.DefaultLanguage), nil
	}

	if err := c.stores.Messages.MarkProcessed(ctx, conversationID); err != nil {
		c.log.Warn("mark processed failed", "conversation", conversationID, "error", err)
	}
	return res, nil
}

func apology(owner *store.Owner, fallback string) executor.Result {
	return executor.Result{Text: executor.Apology(owner.Language, fallback)}
}

// catalogLookup adapts the catalog store to the extractor's lookup,
// scoping matches to the active owner.
type catalogLookup struct {
	owners  store.OwnerStore
	catalog store.CatalogStore
}

func (l *catalogLookup) FindProductByName(ctx context.Context, name string) (*intent.ProductRef, bool) {
	owner, err := l.owners.ActiveOwner(ctx)
	if err != nil {
		return nil, false
	}
	p, err := l.catalog.FindProductByName(ctx, owner.ID, name)
	if err != nil {
		return nil, false
	}
	return &intent.ProductRef{ID: p.ID, Name: p.Name, Price: p.Price, Currency: p.Currency}, true
}
