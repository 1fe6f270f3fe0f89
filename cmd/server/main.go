package main

import (
	"context"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"

	"freight_link/internal/bidding"
	"freight_link/internal/config"
	"freight_link/internal/controllers"
	"freight_link/internal/logger"
	"freight_link/internal/middleware"
	"freight_link/internal/orders"
	"freight_link/internal/pricing"
	"freight_link/internal/routes"
	"freight_link/internal/store"
	"freight_link/internal/tracking"
)

func main() {
	// Structured logging to rotating file + stderr
	logger.Setup()

	// Pick the store backend: Postgres in production, in-process for
	// local development.
	var st store.Store
	if config.UseMemoryStore() {
		logrus.Warn("Running on the in-memory store; nothing will be persisted.")
		st = store.NewMemoryStore()
	} else {
		if err := config.InitDB(); err != nil {
			log.Fatalf("database init: %v", err)
		}
		st = store.NewGormStore(config.DB)
	}

	// External fare oracle (optional)
	var priceClient *pricing.Client
	if url := config.PricingURL(); url != "" {
		priceClient = pricing.NewClient(url)
	} else {
		logrus.Warn("PRICING_API_URL not set; orders will carry no fair-price floor.")
	}

	// Core services
	orderSvc := orders.NewService(st, priceClient, config.BidWindow())
	bidSvc := bidding.NewService(st)
	trackSvc := tracking.NewService(st, config.TrailKeep())

	// Background sweep that closes expired auctions
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bidding.NewSweeper(bidSvc, config.AuctionSweepInterval()).Start(ctx)

	// HTTP surface
	hub := controllers.NewTrackHub()
	r := routes.SetupRouter(routes.Controllers{
		Orders:   &controllers.OrderController{Orders: orderSvc},
		Bids:     &controllers.BidController{Bids: bidSvc},
		Tracking: &controllers.TrackingController{Tracker: trackSvc, Hub: hub},
		WS:       &controllers.WSController{Tracker: trackSvc, Hub: hub},
	})

	handler := middleware.EnableCORS(r)

	addr := config.ListenAddr()
	log.Printf("🚚 Server running at %s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
