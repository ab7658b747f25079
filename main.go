package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"auction-engine/internal/auth"
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/config"
	"auction-engine/internal/metrics"
	model "auction-engine/internal/models"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"auction-engine/internal/repository/sqlite"
	"auction-engine/internal/server"
	"auction-engine/internal/sweeper"
	"auction-engine/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("failed to load configuration", map[string]any{"error": err.Error()})
	}
	utils.SetLevel(cfg.LogLevel)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo := openStore(ctx, cfg)
	defer closeRepo()

	hub := notify.NewHub(64)
	biddingSvc := bidding.NewBiddingService(repo, hub)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	if cfg.SeedDemoData {
		prepopulateAuctions(ctx, biddingSvc, jwtManager)
	}

	sweep := sweeper.New(biddingSvc, cfg.SweepInterval)
	sweep.Start(ctx)
	defer sweep.Stop()

	router := server.SetupRouter(biddingSvc, hub, jwtManager, server.Options{
		BidRatePerSecond: cfg.BidRatePerSecond,
		BidRateBurst:     cfg.BidRateBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{"addr": cfg.Port, "store": cfg.StoreDriver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error("server stopped unexpectedly", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	utils.Info("shutting down", nil)

	// end open event streams so Shutdown does not wait on them
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
	}
}

// openStore returns the configured repository and a function releasing it
func openStore(ctx context.Context, cfg config.Config) (repository.AuctionDB, func()) {
	if cfg.StoreDriver != config.DriverSQLite {
		return repository.NewMemoryRepo(), func() {}
	}

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		utils.Fatal("failed to open sqlite store", map[string]any{"path": cfg.DBPath, "error": err.Error()})
	}
	return store, func() {
		if err := store.Close(); err != nil {
			utils.Error("failed to close sqlite store", map[string]any{"error": err.Error()})
		}
	}
}

// prepopulateAuctions adds demo users and auctions and logs a token for each user
func prepopulateAuctions(ctx context.Context, svc *bidding.BiddingService, jwtManager *auth.JWTManager) {
	now := time.Now().UTC()

	users := []model.User{
		{UserID: "alice", Name: "Alice", Email: "alice@example.com", Roles: []string{model.RoleUser}},
		{UserID: "bob", Name: "Bob", Email: "bob@example.com", Roles: []string{model.RoleUser}},
		{UserID: "admin", Name: "Admin", Email: "admin@example.com", Roles: []string{model.RoleUser, model.RoleAdmin}},
	}
	for _, u := range users {
		if _, err := svc.SyncProfile(ctx, u, now); err != nil {
			utils.Fatal("failed to seed user", map[string]any{"user_id": u.UserID, "error": err.Error()})
		}
		token, err := jwtManager.Generate(u)
		if err != nil {
			utils.Fatal("failed to issue demo token", map[string]any{"user_id": u.UserID, "error": err.Error()})
		}
		utils.Info("demo user ready", map[string]any{"user_id": u.UserID, "token": token})
	}

	auctions := []model.NewAuction{
		{Name: "Vintage Lamp", Description: "Brass desk lamp, working order", MinBid: 10, DurationHours: 1},
		{Name: "Road Bike", Description: "Steel frame, 56cm", MinBid: 150, DurationHours: 24},
		{Name: "First Edition Novel", Description: "Signed copy", MinBid: 75.5, DurationHours: 72},
	}
	for _, a := range auctions {
		created, err := svc.CreateAuction(ctx, "alice", a, now)
		if err != nil {
			utils.Fatal("failed to seed auction", map[string]any{"name": a.Name, "error": err.Error()})
		}
		utils.Debug("demo auction created", map[string]any{"auction_id": created.AuctionID, "name": created.Name})
	}
}
