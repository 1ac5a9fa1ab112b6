package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/config"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
)

// Client calls the payment provider's REST API.
type Client struct {
	APIKey     string
	StoreID    string
	APIBaseURL string

	HTTPClient *http.Client
}

// CheckoutRequest describes a hosted checkout for upgrading a community.
type CheckoutRequest struct {
	CommunityID uint
	UserID      string
	Email       string
	Tier        tiers.Tier
}

func NewClient(cfg config.PaymentConfig) (*Client, error) {
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	return &Client{
		APIKey:     cfg.APIKey,
		StoreID:    cfg.StoreID,
		APIBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

type checkoutBody struct {
	StoreID  string            `json:"store_id"`
	Email    string            `json:"email,omitempty"`
	Metadata map[string]string `json:"metadata"`
}

// CreateCheckout creates a hosted checkout and returns the URL the user should
// be sent to. The reference and tier travel in the checkout metadata and come
// back on the webhook.
func (c *Client) CreateCheckout(ctx context.Context, in CheckoutRequest) (string, error) {
	tier, ok := tiers.ParsePaid(string(in.Tier))
	if !ok {
		return "", errors.New("checkout tier must be silver or gold")
	}
	if in.CommunityID == 0 || !validUserID(in.UserID) {
		return "", ErrMalformedReference
	}
	ref := Reference{CommunityID: in.CommunityID, UserID: in.UserID}

	payload, err := json.Marshal(checkoutBody{
		StoreID: c.StoreID,
		Email:   strings.TrimSpace(in.Email),
		Metadata: map[string]string{
			"reference": ref.String(),
			"tier":      string(tier),
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/checkouts", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: create checkout status=%d body=%s", ErrProvider, resp.StatusCode, string(body))
	}

	var out struct {
		URL  string `json:"url"`
		Data struct {
			URL        string `json:"url"`
			Attributes struct {
				URL string `json:"url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode checkout: %v", ErrProvider, err)
	}
	for _, u := range []string{out.URL, out.Data.URL, out.Data.Attributes.URL} {
		if strings.TrimSpace(u) != "" {
			return strings.TrimSpace(u), nil
		}
	}
	return "", fmt.Errorf("%w: checkout response without url", ErrProvider)
}
