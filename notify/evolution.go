/*
Package notify sends WhatsApp payment reminders for unpaid expenses.

It consists of an Evolution API client (the outbound messaging gateway)
and a Scheduler that fires once a day at a configured local time,
messaging every user who has an unpaid expense due today or tomorrow and
a registered WhatsApp number.

The package observes the ledger; it never participates in balance
consistency. A failed send is logged and counted, nothing more.
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender delivers a text message to a phone number.
type Sender interface {
	SendText(ctx context.Context, number, text string) error
}

// =============================================================================
// EVOLUTION API CLIENT
// =============================================================================

// EvolutionClient talks to an Evolution API instance, the self-hosted
// WhatsApp gateway the tracker integrates with.
type EvolutionClient struct {
	baseURL  string
	instance string
	apiKey   string
	client   *http.Client
}

func NewEvolutionClient(baseURL, instance, apiKey string) *EvolutionClient {
	return &EvolutionClient{
		baseURL:  baseURL,
		instance: instance,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SendText posts a text message through the instance.
func (c *EvolutionClient) SendText(ctx context.Context, number, text string) error {
	body, err := json.Marshal(map[string]string{"number": number, "text": text})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, c.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("send message: %s", readAPIError(resp.Body, resp.Status))
	}
	return nil
}

// ConnectionState reports the instance's connection state ("open" when the
// WhatsApp session is live). The scheduler checks this once per run before
// sending anything.
func (c *EvolutionClient) ConnectionState(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/instance/connectionState/%s", c.baseURL, c.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("connection state: %s", readAPIError(resp.Body, resp.Status))
	}

	var payload struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("connection state: decode: %w", err)
	}
	if payload.Instance.State != "" {
		return payload.Instance.State, nil
	}
	if payload.State != "" {
		return payload.State, nil
	}
	return "unknown", nil
}

func readAPIError(r io.Reader, fallback string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fallback
}
