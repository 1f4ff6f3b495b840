package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/infra/logging"
	red "telegram-sticker-cloner/internal/infra/redis"
	"telegram-sticker-cloner/internal/infra/store"
	"telegram-sticker-cloner/internal/usecase"
)

func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var rc *red.Client
	if cfg.Store.Backend == "redis" || cfg.Store.Distributed {
		rc, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rc.Close()
	}

	st, closeStore, err := store.Open(ctx, cfg, rc, logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	ledger := usecase.NewLedgerUseCase(st, cfg.Bot.OwnerID, logger)

	// If templates already exist, do nothing
	existing, err := ledger.ListTemplates(ctx)
	if err != nil {
		log.Fatalf("list templates: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d templates already present. No changes.\n", len(existing))
		for _, t := range existing {
			fmt.Printf("  - %s (id=%s, days=%d, limit=%s)\n", t.Name, t.ID, t.Days, t.Limit)
		}
		return
	}

	seed := []usecase.TemplateParams{
		{Name: "Weekly", Days: 7, Limit: model.Capped(1), ExpiresInDays: 30},
		{Name: "Monthly", Days: 30, Limit: model.Capped(1), ExpiresInDays: 60},
		{Name: "Giveaway", Category: "Giveaway", Days: 3, Limit: model.Unlimited(), ExpiresInDays: 7},
	}
	for _, p := range seed {
		t, err := ledger.CreateTemplate(ctx, p)
		if err != nil {
			log.Fatalf("create template %q: %v", p.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, days=%d, limit=%s)\n", t.Name, t.ID, t.Days, t.Limit)
	}

	fmt.Println("Seeding complete.")
}
