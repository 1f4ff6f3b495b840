package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/infra/web"
)

// admintoken prints a bearer token for the owner's admin API.
func main() {
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to admin.token_ttl)")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Admin.JWTSecret == "" {
		log.Fatal("admin.jwt_secret (ADMIN_JWT_SECRET) is not set")
	}

	lifetime := cfg.Admin.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	token, err := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Bot.OwnerID, lifetime).Mint(cfg.Bot.OwnerID)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Println(token)
	log.Printf("token for owner %d expires at %s", cfg.Bot.OwnerID, time.Now().Add(lifetime).Format(time.RFC3339))
}
