package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zenith/backoffice/internal/app"
	"zenith/backoffice/internal/config"
	"zenith/backoffice/internal/httpapi"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), backend.Repo)
	api := httpapi.New(backend.Service, auth, cfg.AllowedOrigin, cfg.SecureCookies)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Recalculation prices every order and may wait on the quote feeds.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("back office listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	backend.Close()
	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.DatabaseURL != "" && len(cfg.MasterPassword) < 8 {
		return fmt.Errorf("MASTER_PASSWORD must be set and at least 8 characters when DATABASE_URL is set")
	}
	if cfg.AllowedOrigin == "*" && cfg.SecureCookies {
		return fmt.Errorf("ALLOWED_ORIGIN must name an origin when COOKIE_SECURE is enabled")
	}
	return nil
}
