package config

import (
	"os"
	"strconv"
	"time"
)

// GetEnv reads an environment variable or returns the provided default
func GetEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// UseMemoryStore reports whether the service runs on the in-process store
// (local development without Postgres).
func UseMemoryStore() bool {
	return GetEnv("STORE", "postgres") == "memory"
}

// BidWindow is the default auction duration for orders that enable bidding
// without specifying one.
func BidWindow() time.Duration {
	return time.Duration(getEnvInt("BID_WINDOW_SECONDS", 3600)) * time.Second
}

// AuctionSweepInterval is the cadence of the expired-auction sweep.
func AuctionSweepInterval() time.Duration {
	return time.Duration(getEnvInt("AUCTION_SWEEP_SECONDS", 5)) * time.Second
}

// TrailKeep is how many recent location pings are retained per order.
func TrailKeep() int {
	return getEnvInt("TRAIL_KEEP", 50)
}

// PricingURL is the base URL of the external fare oracle; empty disables
// fair-price lookups.
func PricingURL() string {
	return GetEnv("PRICING_API_URL", "")
}

// ListenAddr is the HTTP bind address.
func ListenAddr() string {
	return GetEnv("LISTEN_ADDR", "0.0.0.0:8080")
}
