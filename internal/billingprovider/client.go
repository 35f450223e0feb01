package billingprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Session — ссылка на созданную у провайдера сессию (checkout или portal).
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client — тонкий клиент API биллинг-провайдера.
// Каждый вызов выполняется ровно один раз, ошибки отдаются вызывающему;
// политика повторов, если нужна, живёт на стороне вызывающего.
type Client struct {
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент биллинг-провайдера.
func NewClient(secretKey, apiURL string) *Client {
	return &Client{
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("unexpected status: " + resp.Status)
	}
	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// CreateCheckoutSession создаёт checkout-сессию для подписки на тариф priceRef.
func (c *Client) CreateCheckoutSession(ctx context.Context, priceRef, successURL, cancelURL, customerEmail string) (*Session, error) {
	payload := map[string]any{
		"mode":        "subscription",
		"price":       priceRef,
		"success_url": successURL,
		"cancel_url":  cancelURL,
	}
	if customerEmail != "" {
		payload["customer_email"] = customerEmail
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/checkout/sessions", payload)
	if err != nil {
		return nil, err
	}
	var session Session
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreatePortalSession создаёт сессию портала управления подпиской.
func (c *Client) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (*Session, error) {
	payload := map[string]any{
		"customer":   customerRef,
		"return_url": returnURL,
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/billing_portal/sessions", payload)
	if err != nil {
		return nil, err
	}
	var session Session
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CancelAtPeriodEnd помечает подписку на отмену в конце оплаченного периода.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionRef string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions/"+subscriptionRef,
		map[string]any{"cancel_at_period_end": true})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Reactivate снимает отложенную отмену подписки.
func (c *Client) Reactivate(ctx context.Context, subscriptionRef string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions/"+subscriptionRef,
		map[string]any{"cancel_at_period_end": false})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
