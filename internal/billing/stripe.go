package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"veriglow-backend/internal/usage"
)

const stripeAPIURL = "https://api.stripe.com"

// planPrices maps catalog plans to the provider's monthly price ids.
var planPrices = map[string]string{
	usage.PlanPro:        "price_pro_monthly",
	usage.PlanEnterprise: "price_enterprise_monthly",
}

// StripeClient implements Provider against Stripe's form-encoded HTTP API.
// Create makes a fresh customer per subscription; the customer id lives only
// on the provider side.
type StripeClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewStripeClient returns a provider client authenticated with apiKey.
func NewStripeClient(apiKey string, httpClient *http.Client) *StripeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &StripeClient{APIKey: apiKey, BaseURL: stripeAPIURL, HTTPClient: httpClient}
}

func (c *StripeClient) Create(ctx context.Context, email, userID, plan string) (ProviderSubscription, error) {
	price, ok := planPrices[plan]
	if !ok {
		return ProviderSubscription{}, ErrUnknownPlan
	}

	customerForm := url.Values{}
	customerForm.Set("email", email)
	customerForm.Set("metadata[user_id]", userID)
	var customer struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, "/v1/customers", customerForm, &customer); err != nil {
		return ProviderSubscription{}, err
	}

	subForm := url.Values{}
	subForm.Set("customer", customer.ID)
	subForm.Set("items[0][price]", price)
	var sub struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		CurrentPeriodEnd int64  `json:"current_period_end"`
	}
	if err := c.postForm(ctx, "/v1/subscriptions", subForm, &sub); err != nil {
		return ProviderSubscription{}, err
	}

	out := ProviderSubscription{ID: sub.ID, Status: sub.Status}
	if sub.CurrentPeriodEnd > 0 {
		out.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	return out, nil
}

func (c *StripeClient) Cancel(ctx context.Context, providerID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/v1/subscriptions/"+url.PathEscape(providerID), nil)
	if err != nil {
		return fmt.Errorf("billing: build cancel request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing: cancel subscription: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("billing: cancel subscription HTTP %d: %s", resp.StatusCode, snippet(resp.Body))
	}
	return nil
}

func (c *StripeClient) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("billing: build %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("billing: %s HTTP %d: %s", path, resp.StatusCode, snippet(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("billing: decode %s response: %w", path, err)
	}
	return nil
}

// snippet reads at most 200 bytes of an error body for diagnostics.
func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 200))
	return strings.TrimSpace(string(b))
}

var _ Provider = (*StripeClient)(nil)
