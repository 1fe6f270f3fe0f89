package bidding

import (
	"sort"

	"freight_link/internal/models"
)

// Leaderboard returns the canonical bid ordering: amount ascending, ties
// broken by submission time (earliest wins). This is both the board shown
// to the order owner and the selection order used by the expiry sweep.
func Leaderboard(bids []models.Bid) []models.Bid {
	out := make([]models.Bid, len(bids))
	copy(out, bids)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount < out[j].Amount
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// SelectWinner picks the best still-pending bid in leaderboard order, or
// nil when no live bid exists.
func SelectWinner(bids []models.Bid) *models.Bid {
	for _, b := range Leaderboard(bids) {
		if b.Status == models.BidPending {
			winner := b
			return &winner
		}
	}
	return nil
}

// livePendingBid finds a transporter's current pending bid, if any.
func livePendingBid(bids []models.Bid, transporterID uint) *models.Bid {
	for i := range bids {
		if bids[i].TransporterID == transporterID && bids[i].Status == models.BidPending {
			return &bids[i]
		}
	}
	return nil
}
