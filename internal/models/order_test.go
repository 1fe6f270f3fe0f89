package models

import (
	"errors"
	"testing"
	"time"
)

func twoStopOrder() *Order {
	return &Order{
		Status: StatusPending,
		Stops: []Stop{
			{StopIndex: 1, Address: "Warehouse A"},
			{StopIndex: 2, Address: "Warehouse B"},
		},
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusPending, StatusAssigned) {
		t.Fatalf("expected pending -> assigned allowed")
	}
	if !CanTransition(StatusOpenForBidding, StatusPending) {
		t.Fatalf("expected zero-bid revert open_for_bidding -> pending allowed")
	}
	if CanTransition(StatusDelivered, StatusInTransit) {
		t.Fatalf("expected delivered to be terminal")
	}
	if CanTransition(StatusCancelled, StatusPending) {
		t.Fatalf("expected cancelled to be terminal")
	}
	if CanTransition(StatusPending, StatusDelivered) {
		t.Fatalf("expected no shortcut pending -> delivered")
	}
}

func TestAssignOnce(t *testing.T) {
	o := twoStopOrder()
	now := time.Now()
	if err := o.Assign(7, 9, 3, 8200, now); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if o.Status != StatusAssigned || o.AssignedTransporterID != 7 || o.FinalFare != 8200 {
		t.Fatalf("assignment not applied: %+v", o)
	}
	err := o.Assign(8, 10, 4, 9000, now)
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}
	if o.AssignedTransporterID != 7 {
		t.Fatalf("second assign must not overwrite, got transporter %d", o.AssignedTransporterID)
	}
}

func TestAssignFromTerminalState(t *testing.T) {
	o := twoStopOrder()
	now := time.Now()
	if err := o.Cancel("no longer needed", now); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := o.Assign(7, 9, 3, 8200, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition assigning a cancelled order, got %v", err)
	}
}

func TestCompleteStopSequencing(t *testing.T) {
	o := twoStopOrder()
	now := time.Now()
	if err := o.Assign(7, 9, 3, 8200, now); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if err := o.CompleteStop(2, now); !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence skipping stop 1, got %v", err)
	}
	if err := o.CompleteStop(1, now); err != nil {
		t.Fatalf("CompleteStop(1): %v", err)
	}
	if o.CurrentStopIndex != 1 || o.Status == StatusDelivered {
		t.Fatalf("unexpected state after first stop: index=%d status=%s", o.CurrentStopIndex, o.Status)
	}
	if err := o.CompleteStop(2, now); err != nil {
		t.Fatalf("CompleteStop(2): %v", err)
	}
	if o.Status != StatusDelivered {
		t.Fatalf("expected delivered after final stop, got %s", o.Status)
	}
	if err := o.CompleteStop(1, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected completion refused after delivery, got %v", err)
	}
}

func TestCurrentStopIndexNeverDecreases(t *testing.T) {
	o := twoStopOrder()
	now := time.Now()
	if err := o.Assign(7, 9, 3, 8200, now); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	last := o.CurrentStopIndex
	for seq := 1; seq <= 2; seq++ {
		if err := o.CompleteStop(seq, now); err != nil {
			t.Fatalf("CompleteStop(%d): %v", seq, err)
		}
		if o.CurrentStopIndex < last {
			t.Fatalf("current stop index decreased: %d -> %d", last, o.CurrentStopIndex)
		}
		last = o.CurrentStopIndex
	}
}

func TestCancelIdempotent(t *testing.T) {
	o := twoStopOrder()
	now := time.Now()
	if err := o.Cancel("rebooked", now); err != nil {
		t.Fatalf("first Cancel: %v", err)
	}
	firstAt := *o.CancelledAt
	if err := o.Cancel("different reason", now.Add(time.Minute)); err != nil {
		t.Fatalf("second Cancel must succeed, got %v", err)
	}
	if o.CancelReason != "rebooked" || !o.CancelledAt.Equal(firstAt) {
		t.Fatalf("second Cancel must be a no-op: %+v", o)
	}
}

func TestCancelAfterDelivery(t *testing.T) {
	o := twoStopOrder()
	now := time.Now()
	if err := o.Assign(7, 9, 3, 8200, now); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := o.CompleteStop(1, now); err != nil {
		t.Fatalf("CompleteStop(1): %v", err)
	}
	if err := o.CompleteStop(2, now); err != nil {
		t.Fatalf("CompleteStop(2): %v", err)
	}
	if err := o.Cancel("too late", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected cancel refused after delivery, got %v", err)
	}
}

func TestBiddingWindow(t *testing.T) {
	o := twoStopOrder()
	now := time.Now()
	if err := o.OpenBidding(now, time.Minute); err != nil {
		t.Fatalf("OpenBidding: %v", err)
	}
	if !o.BiddingOpen(now.Add(30 * time.Second)) {
		t.Fatalf("expected window open mid-way")
	}
	if o.BiddingOpen(now.Add(time.Minute)) {
		t.Fatalf("expected window closed at the deadline")
	}
	if !o.BiddingExpired(now.Add(time.Minute)) {
		t.Fatalf("expected window expired at the deadline")
	}
}

func TestAssignClosesOpenWindow(t *testing.T) {
	o := twoStopOrder()
	now := time.Now()
	if err := o.OpenBidding(now, time.Hour); err != nil {
		t.Fatalf("OpenBidding: %v", err)
	}
	accepted := now.Add(10 * time.Minute)
	if err := o.Assign(7, 9, 3, 8200, accepted); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !o.BidClosesAt.Equal(accepted) {
		t.Fatalf("expected window closed at assignment time, got %v", o.BidClosesAt)
	}
}
