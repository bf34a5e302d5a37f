package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

const defaultBaseURL = "http://localhost:8080"

// ApiClient talks to the maitred HTTP API as one chat conversation
type ApiClient struct {
	httpClient     *http.Client
	BaseURL        string
	Token          string
	TenantID       string
	ConversationID string
	Customer       Customer
}

// NewApiClient reads its settings from MAITRED_* environment variables
func NewApiClient() *ApiClient {
	return &ApiClient{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		BaseURL:        envOr("MAITRED_API_URL", defaultBaseURL),
		Token:          os.Getenv("MAITRED_TOKEN"),
		TenantID:       envOr("MAITRED_TENANT", "demo"),
		ConversationID: envOr("MAITRED_CONVERSATION", fmt.Sprintf("cli-%d", time.Now().Unix())),
		Customer: Customer{
			ID:   envOr("MAITRED_CUSTOMER_ID", "cli-user"),
			Name: os.Getenv("MAITRED_CUSTOMER_NAME"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Customer identifies the chat user
type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Location is a shared map point
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Event is one inbound chat event
type Event struct {
	Kind     string    `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Location *Location `json:"location,omitempty"`
	ButtonID string    `json:"button_id,omitempty"`
}

// Button is a quick reply
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Reply is one message from the restaurant
type Reply struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

// TurnResult is the API answer to a turn
type TurnResult struct {
	Replies  []Reply `json:"replies"`
	State    string  `json:"state"`
	NoOp     bool    `json:"no_op"`
	OrderID  string  `json:"order_id,omitempty"`
	IntentID string  `json:"intent_id,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// CheckHealth checks if the API is up and running
func (c *ApiClient) CheckHealth() error {
	resp, err := c.httpClient.Get(c.BaseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status code: %d", resp.StatusCode)
	}
	return nil
}

func (c *ApiClient) tenantPath(format string, args ...interface{}) string {
	return fmt.Sprintf("%s/api/v1/tenants/%s", c.BaseURL, url.PathEscape(c.TenantID)) + fmt.Sprintf(format, args...)
}

// SendEvent posts one event as a turn of this conversation
func (c *ApiClient) SendEvent(ev Event) (*TurnResult, error) {
	body := map[string]interface{}{"customer": c.Customer, "event": ev}
	var res TurnResult
	err := c.post(c.tenantPath("/conversations/%s/turns", url.PathEscape(c.ConversationID)), body, &res)
	return &res, err
}

// ReportPayment simulates the payment provider calling back
func (c *ApiClient) ReportPayment(success bool) (*TurnResult, error) {
	body := map[string]interface{}{"conversation_id": c.ConversationID, "success": success}
	var res TurnResult
	err := c.post(c.tenantPath("/payments/outcome"), body, &res)
	return &res, err
}

// Reset clears the conversation on the server
func (c *ApiClient) Reset() error {
	return c.post(c.tenantPath("/conversations/%s/reset", url.PathEscape(c.ConversationID)), nil, nil)
}

// post sends body as JSON and decodes the answer into out. Non-2xx answers
// are returned as errors after decoding, since failed turns still carry replies.
func (c *ApiClient) post(endpoint string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var apiErr struct {
		Error string `json:"error"`
	}
	if resp.StatusCode >= 300 {
		if out != nil {
			_ = json.NewDecoder(resp.Body).Decode(out)
		} else {
			_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		}
		return fmt.Errorf("API request failed with status code %d %s", resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
