package bidding

import (
	"context"
	"testing"
	"time"

	"freight_link/internal/models"
	"freight_link/internal/store"
)

func TestSweeperClosesExpiredAuction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := store.NewMemoryStore()
	svc := NewService(st)

	base := time.Now().Add(-2 * time.Hour)
	o := openAuction(t, st, base, 0)
	if _, err := svc.Submit(ctx, carrierA, o.ID, SubmitBidInput{Amount: 8200}); err == nil {
		t.Fatalf("window already over, submit must fail")
	}

	go NewSweeper(svc, 10*time.Millisecond).Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		got, err := st.GetOrder(ctx, o.ID)
		if err != nil {
			t.Fatalf("GetOrder: %v", err)
		}
		if got.Status == models.StatusPending {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("sweeper never reverted the expired zero-bid auction, status %s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
