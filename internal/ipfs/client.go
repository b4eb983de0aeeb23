package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultGateway is the public gateway used when none is configured.
const DefaultGateway = "https://ipfs.io/ipfs"

const defaultTimeout = 15 * time.Second

// Client fetches JSON documents from an IPFS HTTP gateway.
type Client struct {
	baseURL string
	timeout time.Duration
}

// NewClient builds a client for the gateway at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultGateway
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: defaultTimeout}
}

// BaseURL returns the gateway root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// URL resolves an ipfs:// link or bare hash against the gateway.
func (c *Client) URL(ref string) string {
	return c.baseURL + "/" + strings.TrimPrefix(ref, "ipfs://")
}

type fetchResult struct {
	status int
	body   []byte
	errs   []error
}

// Get downloads hash and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, hash string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	// The agent has no context hook; the fetch runs aside so cancellation
	// returns at once. The abandoned call still ends at the timeout.
	agent := fiber.Get(c.URL(hash))
	agent.Timeout(timeout)
	done := make(chan fetchResult, 1)
	go func() {
		status, body, errs := agent.Bytes()
		done <- fetchResult{status: status, body: body, errs: errs}
	}()

	var res fetchResult
	select {
	case <-ctx.Done():
		return fmt.Errorf("ipfs get %s: %w", hash, ctx.Err())
	case res = <-done:
	}
	if len(res.errs) > 0 {
		return fmt.Errorf("ipfs get %s: %w", hash, errors.Join(res.errs...))
	}
	if res.status != fiber.StatusOK {
		return fmt.Errorf("ipfs get %s: status %d", hash, res.status)
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("ipfs decode %s: %w", hash, err)
	}
	return nil
}
