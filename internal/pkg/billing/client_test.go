package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/config"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
)

func TestCreateCheckout(t *testing.T) {
	var got checkoutBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkouts" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key_123" {
			t.Errorf("missing api key, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"attributes":{"url":"https://pay.example/c/abc"}}}`))
	}))
	defer srv.Close()

	client, err := NewClient(config.PaymentConfig{
		Provider:   "checkout",
		APIKey:     "key_123",
		StoreID:    "store_9",
		APIBaseURL: srv.URL + "/v1/",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	url, err := client.CreateCheckout(context.Background(), CheckoutRequest{CommunityID: 42, UserID: "abc", Tier: tiers.Gold})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if url != "https://pay.example/c/abc" {
		t.Fatalf("unexpected checkout url %q", url)
	}
	if got.StoreID != "store_9" || got.Metadata["reference"] != "srv=42|uid=abc" || got.Metadata["tier"] != "gold" {
		t.Fatalf("unexpected checkout body %+v", got)
	}
}

func TestCreateCheckoutProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":["store not found"]}`))
	}))
	defer srv.Close()

	client, err := NewClient(config.PaymentConfig{Provider: "checkout", APIKey: "k", StoreID: "s", APIBaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.CreateCheckout(context.Background(), CheckoutRequest{CommunityID: 1, UserID: "u", Tier: tiers.Silver})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}

	if _, err := client.CreateCheckout(context.Background(), CheckoutRequest{CommunityID: 1, UserID: "u", Tier: tiers.Normal}); err == nil {
		t.Fatalf("expected normal tier to be rejected")
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(config.PaymentConfig{Provider: "checkout", APIBaseURL: "https://api.example"}); err == nil {
		t.Fatalf("expected missing api key and store id to fail")
	}
}
