package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls the external fare oracle. The oracle is an opaque
// collaborator: shipment attributes in, a single numeric estimate out.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type estimateRequest struct {
	WeightTon    float64 `json:"weight_ton"`
	DistanceKm   float64 `json:"distance_km"`
	DeliveryType string  `json:"delivery_type"` // "single" or "multi"
	LoadCategory string  `json:"load_category"`
}

type estimateResponse struct {
	EstimatedPrice float64 `json:"estimated_price"`
}

// EstimateInput describes the shipment for pricing.
type EstimateInput struct {
	WeightTon    float64
	DistanceKm   float64
	MultiStop    bool
	LoadCategory string
}

// FairPrice asks the oracle for an estimate in whole rupees.
func (c *Client) FairPrice(ctx context.Context, in EstimateInput) (int64, error) {
	if c == nil || c.baseURL == "" {
		return 0, fmt.Errorf("pricing oracle not configured")
	}
	deliveryType := "single"
	if in.MultiStop {
		deliveryType = "multi"
	}
	category := in.LoadCategory
	if category == "" {
		category = "others"
	}
	body, err := json.Marshal(estimateRequest{
		WeightTon:    in.WeightTon,
		DistanceKm:   in.DistanceKm,
		DeliveryType: deliveryType,
		LoadCategory: category,
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("pricing oracle unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pricing oracle returned %d", resp.StatusCode)
	}
	var out estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("pricing oracle response: %w", err)
	}
	if out.EstimatedPrice <= 0 {
		return 0, fmt.Errorf("pricing oracle returned non-positive estimate")
	}
	return int64(out.EstimatedPrice + 0.5), nil
}
